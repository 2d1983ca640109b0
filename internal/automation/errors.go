// internal/automation/errors.go
package automation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrElementNotFound is returned when a referenced field or control does not
	// exist on the current page.
	ErrElementNotFound = errors.New("element not found")
	// ErrTimeout is returned when an expected page state did not appear within
	// its wait window.
	ErrTimeout = errors.New("timed out waiting for page state")
	// ErrValidationRejected is a server-side rule violation. It aborts only the
	// affected sub-step.
	ErrValidationRejected = errors.New("validation rejected")
	// ErrAuthExhausted means no credential candidate logged in.
	ErrAuthExhausted = errors.New("all credential candidates rejected")
	// ErrUnrecoverable wraps anything else caught at the record boundary.
	ErrUnrecoverable = errors.New("unrecoverable error")
)

// ConflictError reports a conflict that survived every retry.
type ConflictError struct {
	Kind     Outcome
	Attempts int
	Last     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict %q unresolved after %d attempts (last value %q)", e.Kind, e.Attempts, e.Last)
}

// ErrorCode is the short, stable description of a failure written to the
// action log.
type ErrorCode string

const (
	ErrCodeElementNotFound    ErrorCode = "ELEMENT_NOT_FOUND"
	ErrCodeTimeout            ErrorCode = "TIMEOUT_ERROR"
	ErrCodeConflict           ErrorCode = "CONFLICT_EXHAUSTED"
	ErrCodeValidationRejected ErrorCode = "VALIDATION_REJECTED"
	ErrCodeAuthExhausted      ErrorCode = "AUTH_EXHAUSTED"
	ErrCodeCancelled          ErrorCode = "CANCELLED"
	ErrCodeUnrecoverable      ErrorCode = "UNRECOVERABLE"
)

// Code classifies err into the taxonomy.
func Code(err error) ErrorCode {
	var conflict *ConflictError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &conflict):
		return ErrCodeConflict
	case errors.Is(err, ErrElementNotFound):
		return ErrCodeElementNotFound
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, ErrValidationRejected):
		return ErrCodeValidationRejected
	case errors.Is(err, ErrAuthExhausted):
		return ErrCodeAuthExhausted
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	default:
		return ErrCodeUnrecoverable
	}
}
