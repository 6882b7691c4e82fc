package main

import (
	"context"
	"fmt"
	"time"

	"github.com/anish877/phrase-score-insight-sub002/internal/config"
	"github.com/anish877/phrase-score-insight-sub002/internal/db"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

// engine bundles what every command needs: effective config, the
// database handle and the retry-wrapped store.
type engine struct {
	cfg      *config.Config
	database *db.DB
	store    progress.Store
}

// setupEngine loads configuration, connects to Postgres, applies the
// schema and wraps the store with the configured retry policy.
func setupEngine(ctx context.Context, configPath string) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}

	policy := progress.RetryPolicy{
		MaxAttempts: cfg.RetryMaxAttempts,
		Backoff: progress.Exponential{
			Initial: cfg.RetryBaseDelay,
			Max:     time.Minute,
		},
	}

	return &engine{
		cfg:      cfg,
		database: database,
		store:    progress.NewRetryingStore(db.NewProgressStore(database), policy),
	}, nil
}

func (e *engine) close() {
	e.database.Close()
}
