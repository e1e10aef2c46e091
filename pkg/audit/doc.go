// Package audit implements the append-only, hash-chained audit log.
//
// Every enforcement evaluation, policy lifecycle change, and case
// transition is appended as an immutable Entry. Each entry's hash covers
// the previous entry's hash, forming a chain where mutating any historical
// entry breaks recomputation from that point forward. Appends run under a
// single-writer lock so sequence numbers are gapless and two concurrent
// appends can never fork the chain, at the cost of serializing writes.
//
// The chain algorithm lives in application code rather than a database
// trigger so it is portable across storage engines and independently
// testable; the SQLite backend additionally installs triggers rejecting
// any UPDATE or DELETE on the audit table.
package audit
