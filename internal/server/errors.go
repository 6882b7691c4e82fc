// Package server provides the HTTP REST API for the domain visibility engine.
package server

import (
	"errors"
	"net/http"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var validation *progress.ValidationError
	var exhausted *progress.ExhaustedError

	switch {
	case errors.Is(err, progress.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrForbidden):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &exhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode returns the machine-readable label used in error bodies.
func errorCode(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusServiceUnavailable:
		return "storage_unavailable"
	default:
		return "internal_error"
	}
}
