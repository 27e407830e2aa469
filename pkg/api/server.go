// Package api provides the REST API server for earquiz
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/james-see/earquiz/internal/database"
	"github.com/james-see/earquiz/internal/logger"
	"github.com/james-see/earquiz/pkg/drill"
	"github.com/james-see/earquiz/pkg/export"
	"github.com/james-see/earquiz/pkg/quiz"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title earquiz API
// @version 1.0
// @description Frequency ear-training drills and quiz sessions
// @host localhost:8080
// @BasePath /api/v1

const defaultResultsLimit = 50

var errSessionNotFound = errors.New("session not found")

// Server holds the quiz sessions served over HTTP
type Server struct {
	defaults drill.Config
	store    database.Store
	exporter *export.Exporter

	// seed, when set, makes every session generator deterministic
	seed *int64

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu    sync.Mutex
	quiz  *quiz.Session
	saved bool
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithSeed seeds the drill generator of every new session
func WithSeed(seed int64) ServerOption {
	return func(s *Server) {
		s.seed = &seed
	}
}

// NewServer creates a Server. Sessions start from defaults; finished test
// sessions are saved to store.
func NewServer(defaults drill.Config, store database.Store, opts ...ServerOption) *Server {
	if store == nil {
		store = database.NewMemoryStore()
	}
	s := &Server{
		defaults: defaults,
		store:    store,
		exporter: export.New(),
		sessions: make(map[string]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes and middleware
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(recoverWithSentry())
	r.Use(sentryMiddleware())
	r.Use(requestTracking())
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/bands", listBands)
		v1.POST("/sequence", s.handleSequence)
		v1.GET("/results", s.listResults)

		sessions := v1.Group("/sessions")
		sessions.POST("", s.createSession)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.deleteSession)
		sessions.PUT("/:id/config", s.updateConfig)
		sessions.POST("/:id/generate", s.regenerate)
		sessions.GET("/:id/next", s.next)
		sessions.GET("/:id/random", s.random)
		sessions.GET("/:id/choices", s.choices)
		sessions.POST("/:id/drill", s.nextDrill)
		sessions.POST("/:id/answer", s.answer)
		sessions.GET("/:id/score", s.score)
		sessions.POST("/:id/restart", s.restart)
		sessions.GET("/:id/export", s.exportSequence)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the specified port
func StartServer(port int, defaults drill.Config, store database.Store) error {
	s := NewServer(defaults, store)
	logger.Info("Starting API server", logger.Fields{"port": port})
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, drill.ErrInvalidFrequency):
		return http.StatusBadRequest
	case errors.Is(err, quiz.ErrNoActiveDrill),
		errors.Is(err, quiz.ErrAlreadyAnswered),
		errors.Is(err, quiz.ErrSessionComplete):
		return http.StatusConflict
	case errors.Is(err, drill.ErrEmptyOptions),
		errors.Is(err, drill.ErrInvalidConfiguration),
		errors.Is(err, drill.ErrNoDrills),
		errors.Is(err, drill.ErrUnknownPreset),
		errors.Is(err, quiz.ErrUnknownMode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request handler failed", err, logger.WithContext(c))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "earquiz",
	})
}

// listBands godoc
// @Summary List band presets
// @Description Returns the built-in center frequency presets
// @Tags info
// @Produce json
// @Success 200 {object} map[string]map[string][]float64
// @Router /api/v1/bands [get]
func listBands(c *gin.Context) {
	presets := make(map[string][]float64)
	for _, name := range drill.PresetNames() {
		bands, _ := drill.Preset(name)
		presets[name] = bandsToHz(bands)
	}
	c.JSON(http.StatusOK, gin.H{
		"presets": presets,
		"default": drill.PresetOctave10,
	})
}

// handleSequence godoc
// @Summary Generate a drill sequence
// @Description Generates one drill cycle from a configuration without creating a session
// @Tags drills
// @Accept json
// @Produce json
// @Param request body SequenceRequest true "Drill configuration"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/sequence [post]
func (s *Server) handleSequence(c *gin.Context) {
	var req SequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	cfg, err := req.Apply(s.defaults)
	if err != nil {
		respondError(c, err)
		return
	}

	gen := s.newGenerator(cfg)
	seq, err := generate(gen, req.Start)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"config":   toConfig(gen.Config()),
		"source":   bandsToHz(gen.SourceSequence()),
		"sequence": toDrills(seq),
	})
}

// listResults godoc
// @Summary List quiz results
// @Description Returns stored results of finished test sessions, newest first
// @Tags results
// @Produce json
// @Param limit query int false "Maximum number of results (default: 50)"
// @Success 200 {object} ResultsResponse
// @Router /api/v1/results [get]
func (s *Server) listResults(c *gin.Context) {
	limit := defaultResultsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	results, err := s.store.ListResults(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if results == nil {
		results = []database.Result{}
	}
	c.JSON(http.StatusOK, ResultsResponse{Results: results})
}

func (s *Server) newGenerator(cfg drill.Config) *drill.Generator {
	if s.seed != nil {
		return drill.New(cfg, drill.WithSeed(*s.seed))
	}
	return drill.New(cfg)
}

// generate regenerates gen, starting from start when it is set
func generate(gen *drill.Generator, start string) ([]drill.Drill, error) {
	if start == "" {
		return gen.Generate()
	}
	b, err := parseStart(start)
	if err != nil {
		return nil, err
	}
	return gen.GenerateFrom(b)
}

func parseStart(start string) (drill.Band, error) {
	b, err := drill.ParseBand(start)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", drill.ErrInvalidFrequency, err)
	}
	return b, nil
}

func bandsToHz(bands []drill.Band) []float64 {
	hz := make([]float64, len(bands))
	for i, b := range bands {
		hz[i] = float64(b)
	}
	return hz
}
