package progress_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress/memory"
)

func TestResumeNoProgress(t *testing.T) {
	coord := progress.NewCoordinator(memory.New())

	_, err := coord.Resume(context.Background(), progress.NewSubjectKey(7))
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func TestResumeInvalidKey(t *testing.T) {
	coord := progress.NewCoordinator(memory.New())

	_, err := coord.Resume(context.Background(), progress.NewSubjectKey(0))
	var verr *progress.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestResumeRollsBackMissingBrandContext(t *testing.T) {
	// Stored step claims keyword discovery, but only submission data is
	// present: resume at context extraction with a reason.
	store := memory.New()
	key := progress.NewSubjectKey(7)
	_, err := store.Save(context.Background(), key, progress.StepKeywordDiscovery,
		&progress.StageBundle{DomainURL: "ex.com", DomainID: 7}, false)
	require.NoError(t, err)

	coord := progress.NewCoordinator(store)
	result, err := coord.Resume(context.Background(), key)
	require.NoError(t, err)

	assert.Equal(t, progress.StepContextExtraction, result.CurrentStep)
	assert.True(t, result.WasAdjusted)
	assert.Equal(t, "missing brandContext", result.Reason)

	// The correction is persisted: the stored record and the reported
	// result never diverge.
	rec, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, progress.StepContextExtraction, rec.CurrentStep)
	assert.False(t, rec.IsCompleted)
}

func TestResumeIdempotent(t *testing.T) {
	store := memory.New()
	key := progress.NewVersionedKey(7, 2)
	_, err := store.Save(context.Background(), key, progress.StepPhraseGeneration,
		&progress.StageBundle{DomainURL: "ex.com", DomainID: 7, BrandContext: "ctx"}, false)
	require.NoError(t, err)

	coord := progress.NewCoordinator(store)
	first, err := coord.Resume(context.Background(), key)
	require.NoError(t, err)
	second, err := coord.Resume(context.Background(), key)
	require.NoError(t, err)

	// First call corrects and persists; the second sees a clean record.
	assert.Equal(t, progress.StepKeywordDiscovery, first.CurrentStep)
	assert.True(t, first.WasAdjusted)
	assert.Equal(t, first.CurrentStep, second.CurrentStep)
	assert.False(t, second.WasAdjusted)
	assert.Equal(t, first.DataStatus, second.DataStatus)
}

func TestResumeCleanRecordUntouched(t *testing.T) {
	store := memory.New()
	key := progress.NewSubjectKey(9)
	saved, err := store.Save(context.Background(), key, progress.StepKeywordDiscovery,
		&progress.StageBundle{DomainURL: "ex.com", DomainID: 9, BrandContext: "ctx"}, false)
	require.NoError(t, err)

	coord := progress.NewCoordinator(store)
	result, err := coord.Resume(context.Background(), key)
	require.NoError(t, err)

	assert.False(t, result.WasAdjusted)
	assert.Empty(t, result.Reason)
	assert.Equal(t, progress.StepKeywordDiscovery, result.CurrentStep)
	assert.Equal(t, saved.LastActivity, result.LastActivity)
	assert.True(t, result.DataStatus.HasDomainContext)
}

func TestAdvanceSingleStep(t *testing.T) {
	store := memory.New()
	key := progress.NewSubjectKey(3)
	coord := progress.NewCoordinator(store)

	rec, err := coord.Advance(context.Background(), key, progress.StepSubmission,
		&progress.StageBundle{DomainURL: "ex.com", DomainID: 3})
	require.NoError(t, err)
	assert.Equal(t, progress.StepContextExtraction, rec.CurrentStep)
	assert.False(t, rec.IsCompleted)
}

func TestAdvanceToCompleteMarksCompleted(t *testing.T) {
	store := memory.New()
	key := progress.NewSubjectKey(3)
	coord := progress.NewCoordinator(store)

	rec, err := coord.Advance(context.Background(), key, progress.StepModelQuerying, fullResultsBundle())
	require.NoError(t, err)
	assert.Equal(t, progress.StepComplete, rec.CurrentStep)
	assert.True(t, rec.IsCompleted)
}
