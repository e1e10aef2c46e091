package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_entries (
    sequence_number INTEGER PRIMARY KEY,
    timestamp       TEXT    NOT NULL,
    actor_id        TEXT    NOT NULL,
    event_type      TEXT    NOT NULL,
    payload         BLOB    NOT NULL,
    payload_hash    TEXT    NOT NULL,
    previous_hash   TEXT    NOT NULL,
    entry_hash      TEXT    NOT NULL,
    algorithm       TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_event_type
    ON audit_entries(event_type);

CREATE TRIGGER IF NOT EXISTS audit_entries_no_update
BEFORE UPDATE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are immutable');
END;

CREATE TRIGGER IF NOT EXISTS audit_entries_no_delete
BEFORE DELETE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are immutable');
END;
`

const auditColumns = `sequence_number, timestamp, actor_id, event_type, payload,
	payload_hash, previous_hash, entry_hash, algorithm`

// SQLiteStorage persists audit entries in SQLite. Triggers on the table
// reject UPDATE and DELETE so the append-only property holds even
// against direct SQL access through the same handle.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage applies the audit schema on the given handle. The
// handle is shared with other stores, so Close is a no-op.
func NewSQLiteStorage(db *sql.DB) (*SQLiteStorage, error) {
	if _, err := db.Exec(auditSchema); err != nil {
		return nil, &StorageError{Operation: "init", Cause: err}
	}
	return &SQLiteStorage{db: db}, nil
}

// Append inserts a new entry.
func (s *SQLiteStorage) Append(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (`+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SequenceNumber,
		CanonicalTimestamp(entry.Timestamp),
		entry.ActorID,
		entry.EventType,
		[]byte(entry.Payload),
		entry.PayloadHash,
		entry.PreviousHash,
		entry.EntryHash,
		entry.Algorithm,
	)
	if err != nil {
		return &StorageError{Operation: "append", Cause: err}
	}
	return nil
}

// Last returns the highest-sequence entry, or nil when the chain is
// empty.
func (s *SQLiteStorage) Last(ctx context.Context) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_entries
		ORDER BY sequence_number DESC
		LIMIT 1`)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StorageError{Operation: "last", Cause: err}
	}
	return entry, nil
}

// Range returns entries in [fromSeq, toSeq] ordered by sequence number.
func (s *SQLiteStorage) Range(ctx context.Context, fromSeq, toSeq int64) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM audit_entries
		WHERE sequence_number >= ? AND sequence_number <= ?
		ORDER BY sequence_number`, fromSeq, toSeq)
	if err != nil {
		return nil, &StorageError{Operation: "range", Cause: err}
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, &StorageError{Operation: "range", Cause: err}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Operation: "range", Cause: err}
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&n)
	if err != nil {
		return 0, &StorageError{Operation: "count", Cause: err}
	}
	return n, nil
}

// Close is a no-op; the database handle is owned by the caller.
func (s *SQLiteStorage) Close() error {
	return nil
}

type entryScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row entryScanner) (*Entry, error) {
	var (
		entry   Entry
		ts      string
		payload []byte
	)
	err := row.Scan(
		&entry.SequenceNumber,
		&ts,
		&entry.ActorID,
		&entry.EventType,
		&payload,
		&entry.PayloadHash,
		&entry.PreviousHash,
		&entry.EntryHash,
		&entry.Algorithm,
	)
	if err != nil {
		return nil, err
	}
	// The stored text is the canonical hash input, so the parse must not
	// lose precision.
	entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return nil, fmt.Errorf("parse entry timestamp: %w", err)
	}
	entry.Payload = payload
	return &entry, nil
}
