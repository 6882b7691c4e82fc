// Package db provides PostgreSQL persistence for domain onboarding
// progress and domain ownership lookups.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate creates the progress tables if they do not exist. The unique
// index collapses NULL version ids to a sentinel so the unversioned
// line upserts onto itself instead of accumulating duplicate rows.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS domain_progress (
			id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			domain_id BIGINT NOT NULL CHECK (domain_id >= 1),
			version_id BIGINT,
			current_step INT NOT NULL DEFAULT 0,
			step_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS domain_progress_subject_key
			ON domain_progress (domain_id, COALESCE(version_id, 0))`,
		`CREATE TABLE IF NOT EXISTS domain_owners (
			domain_id BIGINT PRIMARY KEY,
			owner_id BIGINT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
