package audit

import "context"

// Storage defines the persistence interface for audit entries.
// Implementations must reject mutation of existing rows; only inserts of
// new entries are valid.
type Storage interface {
	// Append inserts a new entry. The entry's sequence number must not
	// already exist.
	Append(ctx context.Context, entry *Entry) error

	// Last returns the entry with the highest sequence number, or nil when
	// the chain is empty.
	Last(ctx context.Context) (*Entry, error)

	// Range returns entries with fromSeq <= sequence <= toSeq, ordered by
	// sequence number.
	Range(ctx context.Context, fromSeq, toSeq int64) ([]*Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int64, error)

	// Close releases storage resources.
	Close() error
}
