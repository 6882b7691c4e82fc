package progress

import (
	"context"
	"fmt"
	"time"
)

// ResumeResult is the validated, resumable state for one subject key.
// When WasAdjusted is set the stored record has already been corrected
// to match, so the store and this result never diverge.
type ResumeResult struct {
	Key          SubjectKey   `json:"key"`
	CurrentStep  Step         `json:"currentStep"`
	IsCompleted  bool         `json:"isCompleted"`
	StepData     *StageBundle `json:"stepData"`
	LastActivity time.Time    `json:"lastActivity"`
	DataStatus   DataStatus   `json:"dataStatus"`
	FieldReport  []FieldCheck `json:"fieldReport"`
	WasAdjusted  bool         `json:"wasAdjusted"`
	Reason       string       `json:"reason,omitempty"`
}

// Coordinator decides whether and where a session can resume. It reads
// the stored record, validates it against the per-stage requirements,
// and persists any downward correction before reporting, so resumption
// is idempotent and never returns a step the underlying data cannot
// support.
type Coordinator struct {
	store Store
}

// NewCoordinator creates a resume coordinator over the given store.
func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Resume returns the validated resumable state for key. ErrNotFound
// propagates untouched when the subject has no record. A detected
// integrity drift is self-healed, not an error: the result carries the
// corrected, lower step and the caller resumes there.
func (c *Coordinator) Resume(ctx context.Context, key SubjectKey) (*ResumeResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	rec, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	if rec.StepData == nil {
		rec.StepData = &StageBundle{}
	}

	outcome := Validate(rec)
	result := &ResumeResult{
		Key:          key,
		CurrentStep:  rec.CurrentStep,
		IsCompleted:  rec.IsCompleted,
		StepData:     rec.StepData,
		LastActivity: rec.LastActivity,
		DataStatus:   rec.StepData.Status(),
		FieldReport:  outcome.FieldReport,
	}

	if outcome.CorrectedStep >= rec.CurrentStep {
		return result, nil
	}

	// A rolled-back record can no longer be complete.
	corrected, err := c.store.Save(ctx, key, outcome.CorrectedStep, rec.StepData, false)
	if err != nil {
		return nil, fmt.Errorf("failed to persist step correction: %w", err)
	}

	result.CurrentStep = corrected.CurrentStep
	result.IsCompleted = corrected.IsCompleted
	result.LastActivity = corrected.LastActivity
	result.WasAdjusted = true
	result.Reason = fmt.Sprintf("missing %s", outcome.FirstMissing())
	return result, nil
}

// Advance moves a record forward by exactly one step after a stage has
// produced its output, persisting the stage data alongside the new
// position. The step only ever increases by one per call; corrections
// downward are the coordinator's job, never the caller's.
func (c *Coordinator) Advance(ctx context.Context, key SubjectKey, from Step, data *StageBundle) (*Record, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	next := from + 1
	return c.store.Save(ctx, key, next, data, next.Terminal())
}
