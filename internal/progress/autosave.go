package progress

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"
)

// pendingSave is the most recently scheduled payload for one subject
// key. Intermediate payloads within a quiet window are coalesced, not
// queued: only the newest survives to be written.
type pendingSave struct {
	timer     *time.Timer
	gen       uint64
	step      Step
	data      *StageBundle
	completed bool
}

// AutoSaver batches rapid local state changes into a single store
// write after a quiet period. Each Schedule call for a key cancels any
// pending timer for that key and arms a new one; when the timer fires
// uncancelled, exactly one Save runs with the last scheduled payload.
//
// Timers are per subject key, so independent subjects never delay each
// other. Safe for concurrent use.
type AutoSaver struct {
	store       Store
	quietPeriod time.Duration

	mu      sync.Mutex
	pending map[string]*pendingSave
	gen     uint64

	// onError receives save failures; autosave is fire-and-forget so
	// there is no caller left to return them to.
	onError func(key SubjectKey, err error)

	// afterFunc is swapped in tests for a deterministic clock.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewAutoSaver creates a scheduler writing through store after
// quietPeriod of inactivity per subject key. onError may be nil.
func NewAutoSaver(store Store, quietPeriod time.Duration, onError func(key SubjectKey, err error)) *AutoSaver {
	return &AutoSaver{
		store:       store,
		quietPeriod: quietPeriod,
		pending:     make(map[string]*pendingSave),
		onError:     onError,
		afterFunc:   time.AfterFunc,
	}
}

// Schedule records the newest payload for key and re-arms its quiet
// timer. Under a burst of N calls within the quiet period exactly one
// write occurs, containing the Nth call's data.
func (a *AutoSaver) Schedule(key SubjectKey, step Step, data *StageBundle, completed bool) {
	canonical := key.String()

	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.pending[canonical]; ok {
		p.timer.Stop()
	}

	a.gen++
	p := &pendingSave{gen: a.gen, step: step, data: data.Clone(), completed: completed}
	gen := p.gen
	p.timer = a.afterFunc(a.quietPeriod, func() {
		a.fire(key, canonical, gen)
	})
	a.pending[canonical] = p
}

// Cancel clears any pending timer for key without saving. Used when a
// session is explicitly torn down and its unsaved edits should be
// discarded.
func (a *AutoSaver) Cancel(key SubjectKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pending[key.String()]; ok {
		p.timer.Stop()
		delete(a.pending, key.String())
	}
}

// CancelDomain clears pending timers for every line of domainID,
// versioned or not. Used when a whole domain's progress is wiped so a
// buffered save cannot resurrect a deleted record.
func (a *AutoSaver) CancelDomain(domainID int64) {
	prefix := strconv.FormatInt(domainID, 10)

	a.mu.Lock()
	defer a.mu.Unlock()
	for canonical, p := range a.pending {
		if canonical == prefix || strings.HasPrefix(canonical, prefix+"@") {
			p.timer.Stop()
			delete(a.pending, canonical)
		}
	}
}

// Flush writes any pending payload for key immediately, bypassing the
// quiet period. Used at teardown when buffered edits must not be lost.
func (a *AutoSaver) Flush(ctx context.Context, key SubjectKey) error {
	canonical := key.String()

	a.mu.Lock()
	p, ok := a.pending[canonical]
	if ok {
		p.timer.Stop()
		delete(a.pending, canonical)
	}
	a.mu.Unlock()

	if !ok {
		return nil
	}
	_, err := a.store.Save(ctx, key, p.step, p.data, p.completed)
	return err
}

// Pending reports whether key has an unfired scheduled save.
func (a *AutoSaver) Pending(key SubjectKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[key.String()]
	return ok
}

// fire runs when a quiet timer elapses uncancelled. A Schedule or
// Cancel that raced the timer wins: the entry this timer was armed for
// has been replaced or removed, so a stale generation does nothing.
func (a *AutoSaver) fire(key SubjectKey, canonical string, gen uint64) {
	a.mu.Lock()
	p, ok := a.pending[canonical]
	if ok && p.gen != gen {
		ok = false
	} else if ok {
		delete(a.pending, canonical)
	}
	a.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := a.store.Save(ctx, key, p.step, p.data, p.completed); err != nil && a.onError != nil {
		a.onError(key, err)
	}
}
