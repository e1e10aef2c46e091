package policy

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	// ErrUnknownOperator indicates a condition used an operator outside the
	// supported set.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrUnknownMode indicates an unrecognized enforcement mode.
	ErrUnknownMode = errors.New("unknown enforcement mode")

	// ErrUnknownSeverity indicates an unrecognized severity.
	ErrUnknownSeverity = errors.New("unknown severity")
)

// ConditionDecodeError indicates a condition failed to decode into its
// operator-typed form. Decoding happens at policy load time, so these
// errors surface to administrators, never during evaluation.
type ConditionDecodeError struct {
	Field    string
	Operator string
	Reason   string
	Cause    error
}

// Error returns the error message.
func (e *ConditionDecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("condition on field %q (operator %q): %s: %v", e.Field, e.Operator, e.Reason, e.Cause)
	}
	return fmt.Sprintf("condition on field %q (operator %q): %s", e.Field, e.Operator, e.Reason)
}

// Unwrap returns the underlying cause.
func (e *ConditionDecodeError) Unwrap() error {
	return e.Cause
}

// ValidationError indicates a policy failed configuration validation.
type ValidationError struct {
	PolicyID string
	Reason   string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if e.PolicyID != "" {
		return fmt.Sprintf("policy %s: %s", e.PolicyID, e.Reason)
	}
	return fmt.Sprintf("policy validation: %s", e.Reason)
}
