package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a requested row does not exist
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated is returned when no current user can be resolved
	ErrUnauthenticated = errors.New("authentication required")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for a field
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PartialFailureError reports a multi-step operation that stopped part way.
// Done lists the ids that were written before the failure.
type PartialFailureError struct {
	Op     string
	Done   []string
	Failed []string
	Err    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s partially failed (done: %s, failed: %s): %v",
		e.Op, strings.Join(e.Done, ","), strings.Join(e.Failed, ","), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
