// Package memory provides a fully in-memory progress store. Safe for
// concurrent access. Intended for unit testing and development; the
// production store lives in internal/db.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

var _ progress.Store = (*Store)(nil)

// Store keeps one record per canonical subject key.
type Store struct {
	mu      sync.RWMutex
	records map[string]*progress.Record
	// owners maps domain ID to owning principal; Own seeds it so
	// ListActive can filter by owner without a database.
	owners map[int64]int64

	// now is swapped in tests for deterministic staleness checks.
	now func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*progress.Record),
		owners:  make(map[int64]int64),
		now:     time.Now,
	}
}

// SetClock replaces the store's clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Own records ownerID as the owning principal for domainID.
func (s *Store) Own(domainID, ownerID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[domainID] = ownerID
}

// SetOwner records ownerID as the owning principal for domainID.
func (s *Store) SetOwner(_ context.Context, domainID, ownerID int64) error {
	s.Own(domainID, ownerID)
	return nil
}

// Owner resolves the owning principal for a domain, or ErrNotFound.
func (s *Store) Owner(_ context.Context, domainID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.owners[domainID]
	if !ok {
		return 0, progress.ErrNotFound
	}
	return owner, nil
}

// Save upserts the record for key, merging data into any existing
// bundle and stamping LastActivity.
func (s *Store) Save(_ context.Context, key progress.SubjectKey, step progress.Step, data *progress.StageBundle, completed bool) (*progress.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	canonical := key.String()
	existing, ok := s.records[canonical]

	var bundle *progress.StageBundle
	if ok {
		bundle = existing.StepData.Clone()
	} else {
		bundle = &progress.StageBundle{}
	}
	bundle.Merge(data)

	rec := &progress.Record{
		Key:          key,
		CurrentStep:  step,
		StepData:     bundle,
		IsCompleted:  completed,
		LastActivity: s.now(),
	}
	s.records[canonical] = rec
	return snapshot(rec), nil
}

// Get returns the record for key or progress.ErrNotFound.
func (s *Store) Get(_ context.Context, key progress.SubjectKey) (*progress.Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key.String()]
	if !ok {
		return nil, progress.ErrNotFound
	}
	return snapshot(rec), nil
}

// Delete removes one subject key, or every key under the domain when
// the scope says all versions.
func (s *Store) Delete(_ context.Context, domainID int64, scope progress.DeleteScope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope.AllVersions {
		for canonical, rec := range s.records {
			if rec.Key.DomainID == domainID {
				delete(s.records, canonical)
			}
		}
		return nil
	}

	key := progress.SubjectKey{DomainID: domainID, VersionID: scope.VersionID}
	delete(s.records, key.String())
	return nil
}

// ListActive returns incomplete records for domains owned by ownerID
// whose last activity is within the staleness window.
func (s *Store) ListActive(_ context.Context, ownerID int64, staleness time.Duration) ([]*progress.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-staleness)
	var out []*progress.Record
	for _, rec := range s.records {
		if rec.IsCompleted {
			continue
		}
		if rec.LastActivity.Before(cutoff) {
			continue
		}
		if owner, ok := s.owners[rec.Key.DomainID]; !ok || owner != ownerID {
			continue
		}
		out = append(out, snapshot(rec))
	}
	return out, nil
}

// snapshot copies a record so callers never alias stored state.
func snapshot(rec *progress.Record) *progress.Record {
	cp := *rec
	cp.StepData = rec.StepData.Clone()
	return &cp
}
