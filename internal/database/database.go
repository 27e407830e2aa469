package database

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Result is the score of a finished quiz session
type Result struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	SessionID string    `gorm:"not null;index" json:"session_id"`
	Mode      string    `gorm:"not null" json:"mode"`
	Bands     string    `json:"bands"`
	DualBand  bool      `json:"dual_band"`
	Asked     int       `gorm:"not null" json:"asked"`
	Correct   int       `gorm:"not null" json:"correct"`
	Percent   float64   `json:"percent"`
	Passed    bool      `gorm:"index" json:"passed"`
}

// Store persists quiz results
type Store interface {
	SaveResult(ctx context.Context, r *Result) error
	ListResults(ctx context.Context, limit int) ([]Result, error)
}

// Connect opens a postgres connection
func Connect(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the result table
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Result{})
}

// GormStore stores results through gorm
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// SaveResult inserts r and fills its ID and CreatedAt
func (s *GormStore) SaveResult(ctx context.Context, r *Result) error {
	return s.db.WithContext(ctx).Create(r).Error
}

// ListResults returns the newest results first
func (s *GormStore) ListResults(ctx context.Context, limit int) ([]Result, error) {
	var results []Result
	q := s.db.WithContext(ctx).Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// MemoryStore keeps results in process memory. Used when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	results []Result
	nextID  uint
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) SaveResult(_ context.Context, r *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.results = append(s.results, *r)
	return nil
}

func (s *MemoryStore) ListResults(_ context.Context, limit int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.results)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ Store = (*GormStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
