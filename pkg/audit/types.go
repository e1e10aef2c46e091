package audit

import (
	"encoding/json"
	"time"
)

// Event types recorded in the audit chain.
const (
	// EventTypeEnforcement records one complete enforcement evaluation,
	// including every evaluated policy and its per-policy outcome.
	EventTypeEnforcement = "enforcement"

	// EventTypePolicyLifecycle records administrative policy changes
	// (create, submit, activate, archive).
	EventTypePolicyLifecycle = "policy_lifecycle"

	// EventTypeCaseTransition records violation case-status changes.
	EventTypeCaseTransition = "case_transition"

	// EventTypeComplianceAlert records tamper alerts and review-sweep
	// findings raised by the compliance scheduler.
	EventTypeComplianceAlert = "compliance_alert"
)

// Event is the write-side input to the audit log: who did what, with an
// arbitrary JSON-serializable payload.
type Event struct {
	// ActorID identifies the acting principal (user, service, or "system").
	ActorID string

	// Type is one of the EventType constants.
	Type string

	// Payload is the event body; it is serialized once and hashed.
	Payload any
}

// Entry is one immutable link in the audit chain. Entries are never
// updated or deleted after insert.
type Entry struct {
	// SequenceNumber is strictly increasing and gapless.
	SequenceNumber int64 `json:"sequenceNumber"`

	// Timestamp is the append time. Its canonical RFC3339Nano rendering is
	// part of the hash input, so it must round-trip exactly through
	// storage.
	Timestamp time.Time `json:"timestamp"`

	// ActorID identifies the acting principal.
	ActorID string `json:"actorId"`

	// EventType is one of the EventType constants.
	EventType string `json:"eventType"`

	// Payload is the serialized event body, retained for inspection.
	Payload json.RawMessage `json:"payload"`

	// PayloadHash is the hash of Payload.
	PayloadHash string `json:"payloadHash"`

	// PreviousHash is the prior entry's EntryHash, or the genesis constant
	// for the first entry.
	PreviousHash string `json:"previousHash"`

	// EntryHash is the hash over sequence number, canonical timestamp,
	// payload hash, and previous hash.
	EntryHash string `json:"entryHash"`

	// Algorithm identifies the hash algorithm, stored alongside every
	// entry for future migration.
	Algorithm string `json:"algorithm"`
}

// VerificationResult reports the outcome of a chain verification pass.
type VerificationResult struct {
	// Valid is true when every entry in range recomputes to its stored
	// hashes and the sequence is gapless.
	Valid bool `json:"valid"`

	// FromSequence and ToSequence are the verified range bounds.
	FromSequence int64 `json:"fromSequence"`
	ToSequence   int64 `json:"toSequence"`

	// EntriesChecked counts the entries examined.
	EntriesChecked int64 `json:"entriesChecked"`

	// FirstInvalidSequence is the first divergent sequence number, or 0
	// when the chain is intact.
	FirstInvalidSequence int64 `json:"firstInvalidSequence,omitempty"`

	// Reason describes the divergence when Valid is false.
	Reason string `json:"reason,omitempty"`
}
