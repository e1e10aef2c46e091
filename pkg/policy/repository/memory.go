package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleethq/governor/pkg/policy"
)

// MemoryStore implements Store using an in-memory map. It is intended for
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*policy.Policy
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]*policy.Policy)}
}

// Insert persists a new policy.
func (s *MemoryStore) Insert(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = p.Clone()
	return nil
}

// Get returns the policy with the given ID, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// List returns policies matching the filter, ordered by code then version.
func (s *MemoryStore) List(ctx context.Context, f Filter) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*policy.Policy
	for _, p := range s.policies {
		if f.Code != "" && p.Code != f.Code {
			continue
		}
		if f.OperationType != "" && p.OperationType != f.OperationType {
			continue
		}
		if f.State != "" && p.LifecycleState != f.State {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Code != out[j].Code {
			return out[i].Code < out[j].Code
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// ListActive returns every Active policy.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*policy.Policy, error) {
	return s.List(ctx, Filter{State: policy.StateActive})
}

// MaxVersion returns the highest version in a code lineage, or 0.
func (s *MemoryStore) MaxVersion(ctx context.Context, code string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for _, p := range s.policies {
		if p.Code == code && p.Version > max {
			max = p.Version
		}
	}
	return max, nil
}

// ActiveByCode returns the Active policy for a code lineage, or nil.
func (s *MemoryStore) ActiveByCode(ctx context.Context, code string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.policies {
		if p.Code == code && p.LifecycleState == policy.StateActive {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

// Activate promotes target and demotes superseded atomically under the
// store lock.
func (s *MemoryStore) Activate(ctx context.Context, target *policy.Policy, superseded *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if superseded != nil {
		s.policies[superseded.ID] = superseded.Clone()
	}
	s.policies[target.ID] = target.Clone()
	return nil
}

// SetState updates a single policy's lifecycle state.
func (s *MemoryStore) SetState(ctx context.Context, id string, state policy.LifecycleState, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return ErrNotFound
	}
	p.LifecycleState = state
	p.UpdatedAt = updatedAt
	return nil
}

// Close releases store resources.
func (s *MemoryStore) Close() error {
	return nil
}
