package repository

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fleethq/governor/pkg/policy"
)

// snapshot is the immutable active-policy view handed to readers. It is
// replaced wholesale after every lifecycle write.
type snapshot struct {
	byOperation map[string][]*policy.Policy
}

// Repository manages policy records and serves the active-policy view.
type Repository struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// mu serializes lifecycle writers. Readers never take it; they load
	// the current snapshot pointer.
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// New creates a repository over the given store and primes the
// active-policy snapshot.
func New(ctx context.Context, store Store, logger *slog.Logger) (*Repository, error) {
	if logger == nil {
		logger = slog.Default().With("component", "policy.repository")
	}
	r := &Repository{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Create validates a draft and persists it with a fresh ID, the next
// version in its code lineage, and Draft lifecycle state.
func (r *Repository) Create(ctx context.Context, draft *policy.Policy) (*policy.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := draft.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.LifecycleState = policy.StateDraft
	p.EffectiveDate = nil
	p.NextReviewDate = nil
	now := r.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := p.Validate(); err != nil {
		return nil, err
	}

	maxVersion, err := r.store.MaxVersion(ctx, p.Code)
	if err != nil {
		return nil, err
	}
	p.Version = maxVersion + 1

	if err := r.store.Insert(ctx, p); err != nil {
		return nil, err
	}

	r.logger.Info("policy created",
		"policy_id", p.ID,
		"policy_code", p.Code,
		"version", p.Version,
		"mode", p.Mode,
	)
	return p.Clone(), nil
}

// SubmitForApproval moves a Draft policy to PendingApproval.
func (r *Repository) SubmitForApproval(ctx context.Context, id string) (*policy.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.LifecycleState != policy.StateDraft {
		return nil, &InvalidStateTransitionError{
			PolicyID: id, From: p.LifecycleState, To: policy.StatePendingApproval,
		}
	}
	now := r.now().UTC()
	if err := r.store.SetState(ctx, id, policy.StatePendingApproval, now); err != nil {
		return nil, err
	}
	p.LifecycleState = policy.StatePendingApproval
	p.UpdatedAt = now
	return p, nil
}

// Activate promotes a Draft or PendingApproval policy to Active, stamping
// its effective and next-review dates. When another version of the same
// code is already Active, activation succeeds only if the target declares
// it supersedes that version; the prior version is then moved to
// Superseded in the same store transaction. Otherwise the call fails with
// InvalidStateTransitionError and no state changes.
func (r *Repository) Activate(ctx context.Context, id string) (*policy.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch target.LifecycleState {
	case policy.StateDraft, policy.StatePendingApproval:
		// Activatable.
	default:
		return nil, &InvalidStateTransitionError{
			PolicyID: id, From: target.LifecycleState, To: policy.StateActive,
		}
	}

	// Re-validate at the activation boundary: a policy with a malformed
	// condition must never become Active.
	if err := target.Validate(); err != nil {
		return nil, err
	}

	current, err := r.store.ActiveByCode(ctx, target.Code)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	var superseded *policy.Policy
	if current != nil {
		if target.Supersedes != current.ID {
			return nil, &InvalidStateTransitionError{
				PolicyID: id, From: target.LifecycleState, To: policy.StateActive,
				Reason: "another version of code " + target.Code + " is active and not referenced by supersedes",
			}
		}
		superseded = current
		superseded.LifecycleState = policy.StateSuperseded
		superseded.UpdatedAt = now
	}

	target.LifecycleState = policy.StateActive
	effective := now
	target.EffectiveDate = &effective
	if target.ReviewCycleMonths > 0 {
		review := effective.AddDate(0, target.ReviewCycleMonths, 0)
		target.NextReviewDate = &review
	}
	target.UpdatedAt = now

	if err := r.store.Activate(ctx, target, superseded); err != nil {
		return nil, err
	}

	if err := r.refresh(ctx); err != nil {
		return nil, err
	}

	r.logger.Info("policy activated",
		"policy_id", target.ID,
		"policy_code", target.Code,
		"version", target.Version,
		"superseded", superseded != nil,
	)
	return target.Clone(), nil
}

// Archive moves an Active policy to Archived and drops it from the
// active-policy snapshot.
func (r *Repository) Archive(ctx context.Context, id string) (*policy.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.LifecycleState != policy.StateActive {
		return nil, &InvalidStateTransitionError{
			PolicyID: id, From: p.LifecycleState, To: policy.StateArchived,
		}
	}

	now := r.now().UTC()
	if err := r.store.SetState(ctx, id, policy.StateArchived, now); err != nil {
		return nil, err
	}
	if err := r.refresh(ctx); err != nil {
		return nil, err
	}

	p.LifecycleState = policy.StateArchived
	p.UpdatedAt = now
	r.logger.Info("policy archived", "policy_id", p.ID, "policy_code", p.Code)
	return p, nil
}

// Get returns a policy by ID.
func (r *Repository) Get(ctx context.Context, id string) (*policy.Policy, error) {
	return r.store.Get(ctx, id)
}

// List returns policies matching the filter.
func (r *Repository) List(ctx context.Context, f Filter) ([]*policy.Policy, error) {
	return r.store.List(ctx, f)
}

// ActivePolicies returns the Active policies guarding an operation type.
// The call is lock-free: it reads the current immutable snapshot, so
// concurrent lifecycle writes never tear the view.
func (r *Repository) ActivePolicies(operationType string) []*policy.Policy {
	snap := r.snap.Load()
	if snap == nil {
		return nil
	}
	return snap.byOperation[operationType]
}

// ActivePastReview returns Active policies whose next review date has
// passed, for the compliance sweep.
func (r *Repository) ActivePastReview(asOf time.Time) []*policy.Policy {
	snap := r.snap.Load()
	if snap == nil {
		return nil
	}
	var out []*policy.Policy
	for _, policies := range snap.byOperation {
		for _, p := range policies {
			if p.NextReviewDate != nil && p.NextReviewDate.Before(asOf) {
				out = append(out, p)
			}
		}
	}
	return out
}

// refresh rebuilds the active-policy snapshot from the store and swaps it
// in atomically. Callers must hold r.mu, except during construction.
func (r *Repository) refresh(ctx context.Context) error {
	active, err := r.store.ListActive(ctx)
	if err != nil {
		return err
	}
	byOperation := make(map[string][]*policy.Policy)
	for _, p := range active {
		byOperation[p.OperationType] = append(byOperation[p.OperationType], p.Clone())
	}
	r.snap.Store(&snapshot{byOperation: byOperation})
	return nil
}

// Close releases the underlying store.
func (r *Repository) Close() error {
	return r.store.Close()
}
