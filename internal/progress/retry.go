package progress

import (
	"context"
	"math"
	"time"
)

// Backoff computes the delay before retry attempt n (1-indexed).
type Backoff interface {
	Delay(attempt int) time.Duration
}

// Exponential doubles the delay each attempt:
// Delay = min(Initial * 2^(attempt-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// Delay returns Initial * 2^(attempt-1), capped at Max when Max > 0.
func (e Exponential) Delay(attempt int) time.Duration {
	d := time.Duration(float64(e.Initial) * math.Pow(2, float64(attempt-1)))
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// RetryPolicy bounds how a storage operation is retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
	// sleep is swapped in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy matches the engine defaults: three attempts with
// exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     Exponential{Initial: time.Second, Max: time.Minute},
	}
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs op, retrying only StorageError failures with the policy's
// backoff between attempts. Any other error (validation, not-found,
// forbidden) propagates on the first occurrence. When every attempt
// fails the last storage error is surfaced unchanged inside an
// ExhaustedError. Backoff waits respect ctx cancellation.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := policy.Backoff
	if backoff == nil {
		backoff = Exponential{Initial: time.Second}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsStorageError(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if werr := policy.wait(ctx, backoff.Delay(attempt)); werr != nil {
			return zero, werr
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Err: lastErr}
}

// RetryingStore wraps a Store so every operation is retried per the
// policy. It is the only place retry decisions live; callers use it as
// a plain Store.
type RetryingStore struct {
	inner  Store
	policy RetryPolicy
}

// NewRetryingStore wraps inner with the given retry policy.
func NewRetryingStore(inner Store, policy RetryPolicy) *RetryingStore {
	return &RetryingStore{inner: inner, policy: policy}
}

// Save retries the underlying save on transient storage failure.
func (r *RetryingStore) Save(ctx context.Context, key SubjectKey, step Step, data *StageBundle, completed bool) (*Record, error) {
	return Retry(ctx, r.policy, func(ctx context.Context) (*Record, error) {
		return r.inner.Save(ctx, key, step, data, completed)
	})
}

// Get retries the underlying get on transient storage failure.
// ErrNotFound is a normal outcome and propagates immediately.
func (r *RetryingStore) Get(ctx context.Context, key SubjectKey) (*Record, error) {
	return Retry(ctx, r.policy, func(ctx context.Context) (*Record, error) {
		return r.inner.Get(ctx, key)
	})
}

// Delete retries the underlying delete on transient storage failure.
func (r *RetryingStore) Delete(ctx context.Context, domainID int64, scope DeleteScope) error {
	_, err := Retry(ctx, r.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.inner.Delete(ctx, domainID, scope)
	})
	return err
}

// ListActive retries the underlying listing on transient storage failure.
func (r *RetryingStore) ListActive(ctx context.Context, ownerID int64, staleness time.Duration) ([]*Record, error) {
	return Retry(ctx, r.policy, func(ctx context.Context) ([]*Record, error) {
		return r.inner.ListActive(ctx, ownerID, staleness)
	})
}

var _ Store = (*RetryingStore)(nil)
