package violation

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested violation does not exist.
var ErrNotFound = errors.New("violation not found")

// InvalidCaseTransitionError indicates a case-status change that the
// state machine does not permit.
type InvalidCaseTransitionError struct {
	ViolationID string
	From        CaseStatus
	To          CaseStatus
}

// Error returns the error message.
func (e *InvalidCaseTransitionError) Error() string {
	return fmt.Sprintf("invalid case transition for violation %s: %s -> %s",
		e.ViolationID, e.From, e.To)
}

// IsInvalidCaseTransition reports whether err is an
// InvalidCaseTransitionError.
func IsInvalidCaseTransition(err error) bool {
	var target *InvalidCaseTransitionError
	return errors.As(err, &target)
}

// StorageError represents a failure in the violation storage backend.
type StorageError struct {
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("violation storage error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
