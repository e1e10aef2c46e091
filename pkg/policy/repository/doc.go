// Package repository manages versioned policy records and their lifecycle
// state, backed by a durable store.
//
// Lifecycle writes (create, submit, activate, archive) are serialized by a
// single writer lock; activation is transactional against the store so a
// superseded policy leaves Active in the same transaction that promotes
// its successor. Reads of the active-policy view go through an immutable
// snapshot swapped atomically after every write, so concurrent evaluations
// observe either the fully-old or fully-new policy set, never a partial
// one.
package repository
