package progress

import (
	"context"
	"time"
)

// Record is the persisted progress state for one subject key.
type Record struct {
	Key          SubjectKey   `json:"key"`
	CurrentStep  Step         `json:"currentStep"`
	StepData     *StageBundle `json:"stepData"`
	IsCompleted  bool         `json:"isCompleted"`
	LastActivity time.Time    `json:"lastActivity"`
}

// DeleteScope selects how much of a domain's progress a reset removes.
type DeleteScope struct {
	// VersionID limits deletion to one subject key. Ignored when
	// AllVersions is set; nil means the unversioned line.
	VersionID *int64
	// AllVersions removes every subject key under the domain.
	AllVersions bool
}

// Store is the durable persistence boundary for progress records.
// It is the only shared mutable resource in the engine; all mutation
// goes through Save and Delete.
//
// Save upserts atomically keyed by the full subject key. On update the
// incoming bundle is merged field-by-field into the stored one (new
// values overwrite, absent fields are preserved) and LastActivity is
// set to now. Get returns ErrNotFound for fresh subjects. Transient
// I/O failures are wrapped as StorageError so the retry client can
// classify them.
type Store interface {
	Save(ctx context.Context, key SubjectKey, step Step, data *StageBundle, completed bool) (*Record, error)
	Get(ctx context.Context, key SubjectKey) (*Record, error)
	Delete(ctx context.Context, domainID int64, scope DeleteScope) error

	// ListActive returns incomplete records owned by ownerID whose
	// LastActivity falls within the staleness window. Staleness only
	// affects visibility here, never persistence.
	ListActive(ctx context.Context, ownerID int64, staleness time.Duration) ([]*Record, error)
}
