package ionq

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingAPIKey is returned when a client is built without credentials.
	ErrMissingAPIKey = errors.New("ionq: API key is required")

	// ErrNotFound is matched by API errors with status 404.
	ErrNotFound = errors.New("ionq: resource not found")

	// ErrUnauthorized is matched by API errors with status 401 or 403.
	ErrUnauthorized = errors.New("ionq: unauthorized")

	// ErrNoTarget is returned when neither the caller nor the service names a target.
	ErrNoTarget = errors.New("ionq: no target given and no default target configured")

	// ErrUnresolvedParameter is returned when a circuit still has free symbols.
	ErrUnresolvedParameter = errors.New("ionq: circuit has unresolved parameters")

	// ErrJobTimeout is returned when a job does not finish within the job timeout.
	ErrJobTimeout = errors.New("ionq: timed out waiting for job")

	// ErrJobCanceled is returned when waiting on a canceled job.
	ErrJobCanceled = errors.New("ionq: job was canceled")
)

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("ionq: %s (%d): %s", e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ionq: status %d: %s", e.StatusCode, e.Message)
}

// Is maps status codes onto ErrNotFound and ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// JobFailedError is returned when the remote job ends in the failed state.
type JobFailedError struct {
	JobID   string
	Code    string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("ionq: job %s failed: %s (%s)", e.JobID, e.Message, e.Code)
}
