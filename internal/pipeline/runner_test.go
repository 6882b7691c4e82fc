package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress/memory"
)

type fakeStages struct {
	brandContext string
	keywords     []string
	phrases      map[string][]string
	answer       func(phrase string) string

	extractCalls int32
	keywordCalls int32
	queryCalls   int32
	failQueries  bool
}

func (f *fakeStages) ExtractContext(_ context.Context, _ string) (string, error) {
	atomic.AddInt32(&f.extractCalls, 1)
	return f.brandContext, nil
}

func (f *fakeStages) RecommendKeywords(_ context.Context, _, _ string) ([]string, error) {
	atomic.AddInt32(&f.keywordCalls, 1)
	return f.keywords, nil
}

func (f *fakeStages) GeneratePhrases(_ context.Context, keyword, _ string) ([]string, error) {
	return f.phrases[keyword], nil
}

func (f *fakeStages) Query(_ context.Context, phrase string) (string, error) {
	atomic.AddInt32(&f.queryCalls, 1)
	if f.failQueries {
		return "", errors.New("model unavailable")
	}
	return f.answer(phrase), nil
}

func defaultFakes() *fakeStages {
	return &fakeStages{
		brandContext: "Acme sells industrial tools.",
		keywords:     []string{"power drills", "wrenches"},
		phrases: map[string][]string{
			"power drills": {"best power drill brands", "cordless drill reviews"},
			"wrenches":     {"top wrench manufacturers"},
		},
		answer: func(phrase string) string {
			return fmt.Sprintf("For %s, many recommend acme-tools.com for quality.", phrase)
		},
	}
}

func newTestRunner(store progress.Store, stages *fakeStages, notify func(Event)) *Runner {
	return NewRunner(RunnerConfig{
		Store:       store,
		Extractor:   stages,
		Keywords:    stages,
		Phrases:     stages,
		Querier:     stages,
		Concurrency: 2,
		Notify:      notify,
	})
}

func TestRunFreshSubjectCompletesPipeline(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()
	runner := newTestRunner(store, stages, nil)

	key := progress.NewSubjectKey(7)
	rec, err := runner.Run(context.Background(), key, "https://acme-tools.com")
	require.NoError(t, err)

	assert.Equal(t, progress.StepComplete, rec.CurrentStep)
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, "https://acme-tools.com", rec.StepData.DomainURL)
	assert.Equal(t, stages.keywords, rec.StepData.SelectedKeywords)
	assert.Equal(t, 3, rec.StepData.PhraseCount())
	assert.EqualValues(t, 3, stages.queryCalls)

	var results []QueryResult
	require.NoError(t, json.Unmarshal(rec.StepData.QueryResults, &results))
	require.Len(t, results, 3)
	for _, res := range results {
		assert.True(t, res.Mentioned, "phrase %q", res.Phrase)
	}

	var stats QueryStats
	require.NoError(t, json.Unmarshal(rec.StepData.QueryStats, &stats))
	assert.Equal(t, 3, stats.TotalQueries)
	assert.Equal(t, 3, stats.Mentions)
	assert.InDelta(t, 1.0, stats.MentionRate, 1e-9)
}

func TestRunResumesWithoutRedoingFinishedStages(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()
	key := progress.NewSubjectKey(7)

	// A prior session already finished extraction and keyword discovery.
	seed := &progress.StageBundle{
		DomainURL:        "https://acme-tools.com",
		DomainID:         7,
		BrandContext:     stages.brandContext,
		SelectedKeywords: stages.keywords,
	}
	_, err := store.Save(context.Background(), key, progress.StepPhraseGeneration, seed, false)
	require.NoError(t, err)

	runner := newTestRunner(store, stages, nil)
	rec, err := runner.Run(context.Background(), key, "")
	require.NoError(t, err)

	assert.True(t, rec.IsCompleted)
	assert.EqualValues(t, 0, stages.extractCalls)
	assert.EqualValues(t, 0, stages.keywordCalls)
	assert.EqualValues(t, 3, stages.queryCalls)
}

func TestRunHealsDriftedRecordBeforeContinuing(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()
	key := progress.NewSubjectKey(7)

	// Claims phrase generation but never stored any keywords.
	seed := &progress.StageBundle{
		DomainURL:    "https://acme-tools.com",
		DomainID:     7,
		BrandContext: stages.brandContext,
	}
	_, err := store.Save(context.Background(), key, progress.StepPhraseGeneration, seed, false)
	require.NoError(t, err)

	var events []Event
	runner := newTestRunner(store, stages, func(ev Event) { events = append(events, ev) })
	rec, err := runner.Run(context.Background(), key, "")
	require.NoError(t, err)

	assert.True(t, rec.IsCompleted)
	// Extraction was intact, so only the keyword stage onward reran.
	assert.EqualValues(t, 0, stages.extractCalls)
	assert.EqualValues(t, 1, stages.keywordCalls)

	require.NotEmpty(t, events)
	assert.Contains(t, events[0].Message, "resumed at keyword_discovery")
}

func TestRunCompletedSubjectIsIdempotent(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()
	runner := newTestRunner(store, stages, nil)
	key := progress.NewSubjectKey(7)

	_, err := runner.Run(context.Background(), key, "https://acme-tools.com")
	require.NoError(t, err)
	queriesAfterFirst := stages.queryCalls

	rec, err := runner.Run(context.Background(), key, "https://acme-tools.com")
	require.NoError(t, err)

	assert.True(t, rec.IsCompleted)
	assert.Equal(t, queriesAfterFirst, stages.queryCalls)
}

func TestRunSettlesTerminalRecordMissingCompletionFlag(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()
	key := progress.NewSubjectKey(7)

	// A client saved every stage output but never set the completion
	// flag on the terminal step.
	seed := &progress.StageBundle{
		DomainURL:        "https://acme-tools.com",
		DomainID:         7,
		BrandContext:     stages.brandContext,
		SelectedKeywords: stages.keywords,
		GeneratedPhrases: []progress.KeywordPhrases{
			{Keyword: "power drills", Phrases: []string{"best power drill brands"}},
		},
		QueryResults: json.RawMessage(`[{"keyword":"power drills","phrase":"best power drill brands","response":"acme-tools.com","mentioned":true,"mentionCount":1}]`),
		QueryStats:   json.RawMessage(`{"totalQueries":1,"mentions":1,"mentionRate":1}`),
	}
	_, err := store.Save(context.Background(), key, progress.StepComplete, seed, false)
	require.NoError(t, err)

	runner := newTestRunner(store, stages, nil)
	rec, err := runner.Run(context.Background(), key, "")
	require.NoError(t, err)

	assert.Equal(t, progress.StepComplete, rec.CurrentStep)
	assert.True(t, rec.IsCompleted)
	// No stage reran; stored outputs were kept as-is.
	assert.EqualValues(t, 0, stages.extractCalls)
	assert.EqualValues(t, 0, stages.queryCalls)
	assert.Equal(t, seed.QueryResults, rec.StepData.QueryResults)

	stored, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, stored.IsCompleted)
}

func TestRunQueryFailureLeavesResumableRecord(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()
	stages.failQueries = true
	runner := newTestRunner(store, stages, nil)
	key := progress.NewSubjectKey(7)

	_, err := runner.Run(context.Background(), key, "https://acme-tools.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model query failed")

	// Everything up to model querying is persisted.
	rec, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, progress.StepModelQuerying, rec.CurrentStep)
	assert.False(t, rec.IsCompleted)
	assert.Equal(t, 3, rec.StepData.PhraseCount())

	// A retry with a healthy model finishes from where it stopped.
	stages.failQueries = false
	rec, err = runner.Run(context.Background(), key, "")
	require.NoError(t, err)
	assert.True(t, rec.IsCompleted)
}

func TestRunRespectsContextCancellation(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()
	runner := newTestRunner(store, stages, nil)
	key := progress.NewSubjectKey(7)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Run(ctx, key, "https://acme-tools.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunEmitsStageEvents(t *testing.T) {
	store := memory.New()
	stages := defaultFakes()

	var stagesSeen []string
	runner := newTestRunner(store, stages, func(ev Event) {
		stagesSeen = append(stagesSeen, ev.Stage)
	})

	_, err := runner.Run(context.Background(), progress.NewSubjectKey(7), "https://acme-tools.com")
	require.NoError(t, err)

	assert.Contains(t, stagesSeen, "context_extraction")
	assert.Contains(t, stagesSeen, "keyword_discovery")
	assert.Contains(t, stagesSeen, "phrase_generation")
	assert.Contains(t, stagesSeen, "model_querying")
	assert.Equal(t, "complete", stagesSeen[len(stagesSeen)-1])
}
