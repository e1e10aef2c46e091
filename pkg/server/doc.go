// Package server exposes the enforcement and administration HTTP API.
//
// Enforcement: POST /enforce. Policy administration: create, submit,
// activate, and archive drafts; every lifecycle mutation emits a
// policy_lifecycle audit event. Case review: list violations and drive
// case-status transitions, each emitting a case_transition event. Chain
// inspection: verify a sequence range and read entries. Operational:
// /healthz and /metrics.
package server
