package repository

import (
	"errors"
	"fmt"

	"fleethq/governor/pkg/policy"
)

// ErrNotFound indicates the referenced policy does not exist.
var ErrNotFound = errors.New("policy not found")

// InvalidStateTransitionError indicates a lifecycle operation was applied
// to a policy in an incompatible state. No partial state change is
// committed when this error is returned.
type InvalidStateTransitionError struct {
	PolicyID string
	From     policy.LifecycleState
	To       policy.LifecycleState
	Reason   string
}

// Error returns the error message.
func (e *InvalidStateTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("policy %s: invalid transition %s -> %s: %s", e.PolicyID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("policy %s: invalid transition %s -> %s", e.PolicyID, e.From, e.To)
}

// IsInvalidStateTransition reports whether err is an
// InvalidStateTransitionError.
func IsInvalidStateTransition(err error) bool {
	var target *InvalidStateTransitionError
	return errors.As(err, &target)
}

// StoreError represents a failure in the durable policy store.
type StoreError struct {
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("policy store error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}
