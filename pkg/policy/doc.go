// Package policy defines the core policy model for the governance engine:
// versioned policy records, their lifecycle states, enforcement modes, and
// the condition sum type evaluated against operation contexts.
//
// Conditions are decoded once, at policy load time, into a closed set of
// twelve typed operators. Malformed conditions (unknown operators, invalid
// regular expressions, wrong value arity) are rejected during decoding so
// that evaluation itself can never fail: any ambiguity at evaluation time
// (missing context field, type mismatch) resolves deterministically to
// false. An ambiguous condition must never silently authorize an action.
package policy
