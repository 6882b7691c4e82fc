package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

// Owner resolves the owning principal for a domain. Returns
// progress.ErrNotFound for unknown domains; callers translate that
// into a forbidden outcome before any workflow operation runs.
func (db *DB) Owner(ctx context.Context, domainID int64) (int64, error) {
	var ownerID int64
	err := db.pool.QueryRow(ctx,
		`SELECT owner_id FROM domain_owners WHERE domain_id = $1`,
		domainID,
	).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, progress.ErrNotFound
		}
		return 0, &progress.StorageError{Op: "owner", Err: err}
	}
	return ownerID, nil
}

// SetOwner records ownerID as the owning principal for domainID.
func (db *DB) SetOwner(ctx context.Context, domainID, ownerID int64) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO domain_owners (domain_id, owner_id)
		 VALUES ($1, $2)
		 ON CONFLICT (domain_id) DO UPDATE SET owner_id = $2`,
		domainID, ownerID,
	)
	if err != nil {
		return &progress.StorageError{Op: "set_owner", Err: err}
	}
	return nil
}
