// Package bootstrap wires process-wide services shared by the binaries
package bootstrap

import (
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/james-see/earquiz/internal/config"
	"github.com/james-see/earquiz/internal/database"
	"github.com/james-see/earquiz/internal/logger"
)

const sentryFlushTimeout = 2 * time.Second

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// InitSentry initializes Sentry when a DSN is configured. The returned
// function flushes pending events and is safe to call either way.
func InitSentry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		logger.Info("Sentry not configured (SENTRY_DSN not set)", nil)
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "earquiz@" + releaseVersion,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            !cfg.IsProduction(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
			}
			return event
		},
	})
	if err != nil {
		logger.Warn("Failed to initialize Sentry", logger.Fields{"error": err.Error()})
		return func() {}
	}
	logger.Info("Sentry initialized", logger.Fields{
		"environment": cfg.Environment,
		"release":     releaseVersion,
	})
	return func() { sentry.Flush(sentryFlushTimeout) }
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string, len(headers))
	for k, v := range headers {
		switch http.CanonicalHeaderKey(k) {
		case "Authorization", "Cookie", "X-Api-Key":
			filtered[k] = "[Filtered]"
		default:
			filtered[k] = v
		}
	}
	return filtered
}

// OpenStore returns the result store for cfg: postgres when DATABASE_URL is
// set, process memory otherwise
func OpenStore(cfg *config.Config) (database.Store, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Info("DATABASE_URL not set, keeping results in memory", nil)
		return database.NewMemoryStore(), nil
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	logger.Info("Connected to database", nil)
	return database.NewGormStore(db), nil
}
