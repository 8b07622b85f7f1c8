package task

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks network or HTTP-layer failures. Wait retries them.
	ErrTransport = errors.New("transport error")

	// ErrBackendRejected marks a non-2xx application response. It is never
	// retried automatically.
	ErrBackendRejected = errors.New("backend rejected request")

	// ErrInvalidState is returned when an operation needs a job in another
	// state, e.g. Retrieve on a job that has not resolved.
	ErrInvalidState = errors.New("invalid job state")

	// ErrWaitExhausted is returned when Wait hits its attempt or time cap
	// before the job reached a terminal state.
	ErrWaitExhausted = errors.New("wait exhausted before job finished")
)

// APIError represents an error response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// TransportError is a failed backend call that may succeed if repeated.
type TransportError struct {
	Op    string
	JobID string
	Err   error
}

func (e *TransportError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s (job %s): %v", e.Op, e.JobID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// rejected wraps a backend response as ErrBackendRejected.
func rejected(op string, apiErr *APIError) error {
	return fmt.Errorf("%w: %s: %w", ErrBackendRejected, op, apiErr)
}

// classify maps a non-2xx response to the error taxonomy: 5xx responses
// are transient, anything else is a rejection.
func classify(op, jobID string, apiErr *APIError) error {
	if apiErr.StatusCode >= 500 {
		return &TransportError{Op: op, JobID: jobID, Err: apiErr}
	}
	return rejected(op, apiErr)
}
