package repository

import (
	"context"
	"time"

	"fleethq/governor/pkg/policy"
)

// Filter narrows List results. Zero-value fields match everything.
type Filter struct {
	// Code filters by policy code lineage.
	Code string

	// OperationType filters by guarded operation type.
	OperationType string

	// State filters by lifecycle state.
	State policy.LifecycleState
}

// Store defines the durable persistence interface for policy records.
// Implementations must be safe for concurrent use; Activate must apply
// both row updates in a single transaction.
type Store interface {
	// Insert persists a new policy row.
	Insert(ctx context.Context, p *policy.Policy) error

	// Get returns the policy with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*policy.Policy, error)

	// List returns policies matching the filter, ordered by code then
	// version.
	List(ctx context.Context, f Filter) ([]*policy.Policy, error)

	// ListActive returns every Active policy.
	ListActive(ctx context.Context) ([]*policy.Policy, error)

	// MaxVersion returns the highest version in a code lineage, or 0 when
	// the lineage is empty.
	MaxVersion(ctx context.Context, code string) (int, error)

	// ActiveByCode returns the Active policy for a code lineage, or nil
	// when none is active.
	ActiveByCode(ctx context.Context, code string) (*policy.Policy, error)

	// Activate persists the promotion of target to Active and, when
	// superseded is non-nil, the demotion of the prior version, in one
	// transaction. Both policies carry their post-transition state.
	Activate(ctx context.Context, target *policy.Policy, superseded *policy.Policy) error

	// SetState updates a single policy's lifecycle state.
	SetState(ctx context.Context, id string, state policy.LifecycleState, updatedAt time.Time) error

	// Close releases store resources.
	Close() error
}
