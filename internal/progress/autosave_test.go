package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore captures Save calls for assertions.
type recordingStore struct {
	mu    sync.Mutex
	saves []savedCall
	err   error
}

type savedCall struct {
	key       SubjectKey
	step      Step
	data      *StageBundle
	completed bool
}

func (s *recordingStore) Save(_ context.Context, key SubjectKey, step Step, data *StageBundle, completed bool) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.saves = append(s.saves, savedCall{key: key, step: step, data: data.Clone(), completed: completed})
	return &Record{Key: key, CurrentStep: step, StepData: data.Clone(), IsCompleted: completed, LastActivity: time.Now()}, nil
}

func (s *recordingStore) Get(context.Context, SubjectKey) (*Record, error) {
	return nil, ErrNotFound
}

func (s *recordingStore) Delete(context.Context, int64, DeleteScope) error { return nil }

func (s *recordingStore) ListActive(context.Context, int64, time.Duration) ([]*Record, error) {
	return nil, nil
}

func (s *recordingStore) savedCalls() []savedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedCall(nil), s.saves...)
}

// manualTimers replaces time.AfterFunc so tests fire timers by hand.
type manualTimers struct {
	mu        sync.Mutex
	callbacks []func()
}

func (m *manualTimers) afterFunc(_ time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, f)
	// The returned timer never fires on its own; Stop on it is a no-op
	// because firing is driven manually.
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

// fireLast invokes the most recently armed callback.
func (m *manualTimers) fireLast() {
	m.mu.Lock()
	f := m.callbacks[len(m.callbacks)-1]
	m.mu.Unlock()
	f()
}

// fire invokes the i-th armed callback.
func (m *manualTimers) fire(i int) {
	m.mu.Lock()
	f := m.callbacks[i]
	m.mu.Unlock()
	f()
}

func newTestSaver(store Store, onError func(SubjectKey, error)) (*AutoSaver, *manualTimers) {
	timers := &manualTimers{}
	saver := NewAutoSaver(store, 2*time.Second, onError)
	saver.afterFunc = timers.afterFunc
	return saver, timers
}

func TestAutoSaveCoalescesBurst(t *testing.T) {
	// Five schedules within the quiet period produce exactly one write
	// containing the fifth payload.
	store := &recordingStore{}
	saver, timers := newTestSaver(store, nil)
	key := NewSubjectKey(7)

	for i := 1; i <= 5; i++ {
		saver.Schedule(key, StepKeywordDiscovery, &StageBundle{BrandContext: string(rune('a' + i - 1))}, false)
	}
	timers.fireLast()

	saves := store.savedCalls()
	require.Len(t, saves, 1)
	assert.Equal(t, "e", saves[0].data.BrandContext)
	assert.Equal(t, StepKeywordDiscovery, saves[0].step)
	assert.False(t, saver.Pending(key))
}

func TestAutoSaveStaleTimerDoesNothing(t *testing.T) {
	// A replaced timer firing late must not write the newer payload
	// early.
	store := &recordingStore{}
	saver, timers := newTestSaver(store, nil)
	key := NewSubjectKey(7)

	saver.Schedule(key, StepKeywordDiscovery, &StageBundle{BrandContext: "first"}, false)
	saver.Schedule(key, StepKeywordDiscovery, &StageBundle{BrandContext: "second"}, false)

	timers.fire(0)
	assert.Empty(t, store.savedCalls())
	assert.True(t, saver.Pending(key))

	timers.fire(1)
	saves := store.savedCalls()
	require.Len(t, saves, 1)
	assert.Equal(t, "second", saves[0].data.BrandContext)
}

func TestAutoSaveIndependentKeys(t *testing.T) {
	store := &recordingStore{}
	saver, timers := newTestSaver(store, nil)

	saver.Schedule(NewSubjectKey(7), StepSubmission, &StageBundle{DomainID: 7}, false)
	saver.Schedule(NewSubjectKey(8), StepSubmission, &StageBundle{DomainID: 8}, false)

	timers.fire(0)
	timers.fire(1)

	saves := store.savedCalls()
	require.Len(t, saves, 2)
	assert.Equal(t, int64(7), saves[0].data.DomainID)
	assert.Equal(t, int64(8), saves[1].data.DomainID)
}

func TestAutoSaveCancel(t *testing.T) {
	store := &recordingStore{}
	saver, timers := newTestSaver(store, nil)
	key := NewSubjectKey(7)

	saver.Schedule(key, StepSubmission, &StageBundle{DomainID: 7}, false)
	saver.Cancel(key)
	timers.fireLast()

	assert.Empty(t, store.savedCalls())
	assert.False(t, saver.Pending(key))
}

func TestAutoSaveFlush(t *testing.T) {
	store := &recordingStore{}
	saver, _ := newTestSaver(store, nil)
	key := NewSubjectKey(7)

	saver.Schedule(key, StepContextExtraction, &StageBundle{DomainURL: "ex.com"}, false)
	require.NoError(t, saver.Flush(context.Background(), key))

	saves := store.savedCalls()
	require.Len(t, saves, 1)
	assert.Equal(t, "ex.com", saves[0].data.DomainURL)

	// Nothing pending afterwards; a second flush is a no-op.
	require.NoError(t, saver.Flush(context.Background(), key))
	assert.Len(t, store.savedCalls(), 1)
}

func TestAutoSaveReportsErrors(t *testing.T) {
	store := &recordingStore{err: &StorageError{Op: "save", Err: errors.New("down")}}
	var mu sync.Mutex
	var got error
	saver, timers := newTestSaver(store, func(_ SubjectKey, err error) {
		mu.Lock()
		defer mu.Unlock()
		got = err
	})

	saver.Schedule(NewSubjectKey(7), StepSubmission, &StageBundle{DomainID: 7}, false)
	timers.fireLast()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, IsStorageError(got))
}

func TestAutoSavePayloadIsolatedFromCaller(t *testing.T) {
	// Mutating the caller's bundle after scheduling must not change
	// what gets persisted.
	store := &recordingStore{}
	saver, timers := newTestSaver(store, nil)

	bundle := &StageBundle{SelectedKeywords: []string{"eyewear"}}
	saver.Schedule(NewSubjectKey(7), StepPhraseGeneration, bundle, false)
	bundle.SelectedKeywords[0] = "mutated"

	timers.fireLast()
	saves := store.savedCalls()
	require.Len(t, saves, 1)
	assert.Equal(t, []string{"eyewear"}, saves[0].data.SelectedKeywords)
}
