package violation

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage for tests and ephemeral runs.
type MemoryStorage struct {
	mu         sync.Mutex
	violations map[string]*Violation
}

// NewMemoryStorage creates an empty in-memory violation storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{violations: make(map[string]*Violation)}
}

// Insert assigns the offense count under the store lock and persists the
// violation.
func (s *MemoryStorage) Insert(_ context.Context, v *Violation, derive func(*Violation)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior := 0
	for _, existing := range s.violations {
		if existing.PolicyID == v.PolicyID && existing.SubjectID == v.SubjectID {
			prior++
		}
	}
	v.OffenseCount = prior + 1
	if derive != nil {
		derive(v)
	}
	s.violations[v.ID] = v.Clone()
	return nil
}

// Get returns a violation by ID.
func (s *MemoryStorage) Get(_ context.Context, id string) (*Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.violations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v.Clone(), nil
}

// List returns violations matching the filter, newest first.
func (s *MemoryStorage) List(_ context.Context, filter Filter) ([]*Violation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Violation
	for _, v := range s.violations {
		if filter.PolicyID != "" && v.PolicyID != filter.PolicyID {
			continue
		}
		if filter.SubjectID != "" && v.SubjectID != filter.SubjectID {
			continue
		}
		if filter.OperationType != "" && v.OperationType != filter.OperationType {
			continue
		}
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		out = append(out, v.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateStatus sets a violation's case status.
func (s *MemoryStorage) UpdateStatus(_ context.Context, id string, status CaseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.violations[id]
	if !ok {
		return ErrNotFound
	}
	v.Status = status
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}
