package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Lester error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"          // 404
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION" // 409
	ErrRateLimited       ErrorCode = "RATE_LIMITED"       // 429
	ErrInternal          ErrorCode = "INTERNAL"           // 500
)

// LesterError represents a structured error with code, status, and details.
type LesterError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Err is the underlying cause, if any. Never exposed to API clients.
	Err error
}

// Error implements the error interface.
func (e *LesterError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause so errors.Is/As see through store failures.
func (e *LesterError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *LesterError {
	return &LesterError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidFields creates a 400 error carrying per-field validation messages.
func NewInvalidFields(msg string, fields map[string]string) *LesterError {
	return &LesterError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
		Details: map[string]any{"fields": fields},
	}
}

// NewNotFound creates a 404 error for a missing entity.
func NewNotFound(entity, identifier string) *LesterError {
	return &LesterError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", entity, identifier),
		Details: map[string]any{"entity": entity, "identifier": identifier},
	}
}

// NewInvalidTransition creates a 409 error for a job status change the state machine forbids.
func NewInvalidTransition(jobID, from, to string) *LesterError {
	return &LesterError{
		Code:    ErrInvalidTransition,
		Status:  409,
		Message: fmt.Sprintf("job %s cannot move from %s to %s", jobID, from, to),
		Details: map[string]any{"job_id": jobID, "from": from, "to": to},
	}
}

// NewRateLimited creates a 429 error for throttled API clients.
func NewRateLimited() *LesterError {
	return &LesterError{
		Code:    ErrRateLimited,
		Status:  429,
		Message: "too many requests",
	}
}

// NewInternal creates a 500 error for store failures and other unexpected errors.
// The cause is kept in Err and Details for logging; Message stays generic.
func NewInternal(err error) *LesterError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &LesterError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		Err:     err,
	}
}

// Is checks if an error is (or wraps) a LesterError with the given code.
func Is(err error, code ErrorCode) bool {
	var lErr *LesterError
	if stderrors.As(err, &lErr) {
		return lErr.Code == code
	}
	return false
}

// As returns the LesterError in err's chain, if any.
func As(err error) (*LesterError, bool) {
	var lErr *LesterError
	if stderrors.As(err, &lErr) {
		return lErr, true
	}
	return nil, false
}
