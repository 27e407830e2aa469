package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/james-see/earquiz/pkg/drill"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Port        string

	// Observability
	SentryDSN string

	// Persistence. Empty keeps quiz results in memory.
	DatabaseURL string

	// Drill defaults, overridable per session and by CLI flags
	Bands           string
	Order           string
	BoostCut        string
	Priority        string
	DisableAdjacent string
	DualBand        string
}

// Load reads .env (if present) and the process environment
func Load() *Config {
	// a missing .env is fine, the environment still applies
	_ = godotenv.Load()

	return &Config{
		Environment:     getEnv("ENVIRONMENT", "development"),
		Port:            getEnv("PORT", "8080"),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		Bands:           getEnv("EARQUIZ_BANDS", drill.PresetOctave10),
		Order:           getEnv("EARQUIZ_ORDER", string(drill.OrderAsc)),
		BoostCut:        getEnv("EARQUIZ_BOOST_CUT", string(drill.BoostOnly)),
		Priority:        getEnv("EARQUIZ_PRIORITY", "1"),
		DisableAdjacent: getEnv("EARQUIZ_DISABLE_ADJACENT", "1"),
		DualBand:        getEnv("EARQUIZ_DUAL_BAND", "false"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DrillConfig converts the drill defaults into a drill.Config
func (c *Config) DrillConfig() (drill.Config, error) {
	bands, err := drill.ParseBands(c.Bands)
	if err != nil {
		return drill.Config{}, fmt.Errorf("EARQUIZ_BANDS: %w", err)
	}
	order, err := drill.ParseOrder(c.Order)
	if err != nil {
		return drill.Config{}, fmt.Errorf("EARQUIZ_ORDER: %w", err)
	}
	boostCut, err := drill.ParseBoostCut(c.BoostCut)
	if err != nil {
		return drill.Config{}, fmt.Errorf("EARQUIZ_BOOST_CUT: %w", err)
	}
	priority, err := drill.ParsePriority(c.Priority)
	if err != nil {
		return drill.Config{}, fmt.Errorf("EARQUIZ_PRIORITY: %w", err)
	}
	adjacent, err := strconv.Atoi(c.DisableAdjacent)
	if err != nil || adjacent < 0 {
		return drill.Config{}, fmt.Errorf("EARQUIZ_DISABLE_ADJACENT: %w: %q", drill.ErrInvalidConfiguration, c.DisableAdjacent)
	}
	dual, err := strconv.ParseBool(c.DualBand)
	if err != nil {
		return drill.Config{}, fmt.Errorf("EARQUIZ_DUAL_BAND: %w: %q", drill.ErrInvalidConfiguration, c.DualBand)
	}
	return drill.Config{
		Bands:           bands,
		BoostCut:        boostCut,
		DualBand:        dual,
		Order:           order,
		Priority:        priority,
		DisableAdjacent: adjacent,
	}, nil
}
