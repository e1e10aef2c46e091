// Package enforce orchestrates policy enforcement for business
// operations.
//
// A caller submits an operation type and an opaque context map. The
// coordinator evaluates every active policy for that operation type,
// resolves each policy's effective mode, aggregates per-policy outcomes
// into a single Decision, appends exactly one audit entry, and records
// violations.
//
// The audit append is a precondition for any result: if it fails, the
// caller receives an error and no Decision, and must treat the
// operation as denied. Violation recording failures degrade gracefully;
// the decision stands and the failure is logged and counted.
package enforce
