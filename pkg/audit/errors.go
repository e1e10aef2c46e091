package audit

import (
	"errors"
	"fmt"
)

// ErrEmptyChain indicates a verification or read against a chain with no
// entries.
var ErrEmptyChain = errors.New("audit chain is empty")

// WriteError indicates an audit append failed. This error is fatal for
// the enclosing enforcement call: no decision may be surfaced without a
// corresponding audit entry, so callers must treat it as deny-by-default.
type WriteError struct {
	EventType string
	Cause     error
}

// Error returns the error message.
func (e *WriteError) Error() string {
	return fmt.Sprintf("audit write failed [event_type=%s]: %v", e.EventType, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *WriteError) Unwrap() error {
	return e.Cause
}

// IsWriteError reports whether err is an audit WriteError.
func IsWriteError(err error) bool {
	var target *WriteError
	return errors.As(err, &target)
}

// StorageError represents a failure in the audit storage backend.
type StorageError struct {
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}
