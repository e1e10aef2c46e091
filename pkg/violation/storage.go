package violation

import "context"

// Filter narrows List results. Zero-value fields match everything.
type Filter struct {
	PolicyID      string
	SubjectID     string
	OperationType string
	Status        CaseStatus
}

// Storage persists violations.
type Storage interface {
	// Insert assigns the violation's offense count and persists it. The
	// count query and the insert happen in one transaction, and derive is
	// called between them so callers can fill fields computed from the
	// count before the row is written.
	Insert(ctx context.Context, v *Violation, derive func(*Violation)) error

	// Get returns a violation by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Violation, error)

	// List returns violations matching the filter, newest first.
	List(ctx context.Context, filter Filter) ([]*Violation, error)

	// UpdateStatus sets a violation's case status. The transition must
	// already be validated by the caller.
	UpdateStatus(ctx context.Context, id string, status CaseStatus) error

	// Close releases storage resources.
	Close() error
}
