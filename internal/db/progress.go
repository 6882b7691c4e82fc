package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

var _ progress.Store = (*ProgressStore)(nil)

// psql builds queries with PostgreSQL-style positional placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ProgressStore is the PostgreSQL implementation of progress.Store.
// One row per subject key; step data lives in a jsonb column so the
// upsert can merge bundles server-side in a single atomic statement.
type ProgressStore struct {
	db *DB
}

// NewProgressStore creates a progress store over an open connection pool.
func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Save upserts the record for key. On update the incoming bundle is
// merged into the stored jsonb (new fields overwrite, absent fields
// survive) and last_activity is stamped, all in one statement so a
// cancelled save either applies fully or not at all.
func (s *ProgressStore) Save(ctx context.Context, key progress.SubjectKey, step progress.Step, data *progress.StageBundle, completed bool) (*progress.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	if data == nil {
		data = &progress.StageBundle{}
	}
	bundleJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step data: %w", err)
	}

	row := s.db.pool.QueryRow(ctx,
		`INSERT INTO domain_progress (domain_id, version_id, current_step, step_data, is_completed, last_activity)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (domain_id, COALESCE(version_id, 0)) DO UPDATE
		 SET current_step = EXCLUDED.current_step,
		     step_data = domain_progress.step_data || EXCLUDED.step_data,
		     is_completed = EXCLUDED.is_completed,
		     last_activity = NOW()
		 RETURNING domain_id, version_id, current_step, step_data, is_completed, last_activity`,
		key.DomainID, key.VersionID, int(step), bundleJSON, completed,
	)

	rec, err := scanProgress(row)
	if err != nil {
		return nil, &progress.StorageError{Op: "save", Err: err}
	}
	return rec, nil
}

// Get retrieves the record for key, or progress.ErrNotFound on a fresh
// subject. Not-found is a normal outcome, never a storage failure.
func (s *ProgressStore) Get(ctx context.Context, key progress.SubjectKey) (*progress.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	row := s.db.pool.QueryRow(ctx,
		`SELECT domain_id, version_id, current_step, step_data, is_completed, last_activity
		 FROM domain_progress
		 WHERE domain_id = $1 AND version_id IS NOT DISTINCT FROM $2`,
		key.DomainID, key.VersionID,
	)

	rec, err := scanProgress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, progress.ErrNotFound
		}
		return nil, &progress.StorageError{Op: "get", Err: err}
	}
	return rec, nil
}

// Delete removes one subject key, or every version line under the
// domain when the scope says all versions.
func (s *ProgressStore) Delete(ctx context.Context, domainID int64, scope progress.DeleteScope) error {
	var err error
	if scope.AllVersions {
		_, err = s.db.pool.Exec(ctx,
			`DELETE FROM domain_progress WHERE domain_id = $1`, domainID)
	} else {
		_, err = s.db.pool.Exec(ctx,
			`DELETE FROM domain_progress
			 WHERE domain_id = $1 AND version_id IS NOT DISTINCT FROM $2`,
			domainID, scope.VersionID)
	}
	if err != nil {
		return &progress.StorageError{Op: "delete", Err: err}
	}
	return nil
}

// ListActive returns incomplete records for domains owned by ownerID
// with activity inside the staleness window, newest first.
func (s *ProgressStore) ListActive(ctx context.Context, ownerID int64, staleness time.Duration) ([]*progress.Record, error) {
	query, args, err := activeSessionsQuery(ownerID, time.Now().Add(-staleness))
	if err != nil {
		return nil, fmt.Errorf("failed to build active sessions query: %w", err)
	}

	rows, err := s.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &progress.StorageError{Op: "list_active", Err: err}
	}
	defer rows.Close()

	var records []*progress.Record
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, &progress.StorageError{Op: "list_active", Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &progress.StorageError{Op: "list_active", Err: err}
	}
	return records, nil
}

// activeSessionsQuery builds the filtered listing for one owner.
func activeSessionsQuery(ownerID int64, cutoff time.Time) (string, []interface{}, error) {
	return psql.
		Select("p.domain_id", "p.version_id", "p.current_step", "p.step_data", "p.is_completed", "p.last_activity").
		From("domain_progress p").
		Join("domain_owners o ON o.domain_id = p.domain_id").
		Where(sq.Eq{"o.owner_id": ownerID}).
		Where(sq.Eq{"p.is_completed": false}).
		Where(sq.GtOrEq{"p.last_activity": cutoff}).
		OrderBy("p.last_activity DESC").
		ToSql()
}

// scanProgress reads one domain_progress row into a Record.
func scanProgress(row pgx.Row) (*progress.Record, error) {
	var (
		domainID     int64
		versionID    *int64
		currentStep  int
		bundleJSON   []byte
		isCompleted  bool
		lastActivity time.Time
	)
	if err := row.Scan(&domainID, &versionID, &currentStep, &bundleJSON, &isCompleted, &lastActivity); err != nil {
		return nil, err
	}

	bundle := &progress.StageBundle{}
	if len(bundleJSON) > 0 {
		if err := json.Unmarshal(bundleJSON, bundle); err != nil {
			return nil, fmt.Errorf("failed to decode step data: %w", err)
		}
	}

	return &progress.Record{
		Key:          progress.SubjectKey{DomainID: domainID, VersionID: versionID},
		CurrentStep:  progress.Step(currentStep),
		StepData:     bundle,
		IsCompleted:  isCompleted,
		LastActivity: lastActivity,
	}, nil
}
