package progress

import (
	"errors"
	"fmt"
)

// Sentinel outcomes. ErrNotFound is an expected, non-exceptional
// result for fresh subjects; ErrForbidden means the ownership check
// rejected the caller before any workflow operation ran. Neither is
// ever retried.
var (
	ErrNotFound  = errors.New("no progress for subject")
	ErrForbidden = errors.New("subject not owned by caller")
)

// ValidationError rejects malformed input (bad subject key, malformed
// bundle shape) before any store access. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError marks a transient persistence failure. The retry client
// treats it as retryable; everything else propagates on first
// occurrence.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ExhaustedError is surfaced when every retry attempt failed. It
// carries the last underlying storage error unchanged.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("storage failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }
