package audit

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStorage is an in-memory Storage for tests and ephemeral runs.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryStorage creates an empty in-memory audit storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append inserts a new entry.
func (s *MemoryStorage) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := len(s.entries); n > 0 && entry.SequenceNumber <= s.entries[n-1].SequenceNumber {
		return &StorageError{
			Operation: "append",
			Cause:     fmt.Errorf("sequence %d already present", entry.SequenceNumber),
		}
	}
	clone := *entry
	clone.Payload = append([]byte(nil), entry.Payload...)
	s.entries = append(s.entries, &clone)
	return nil
}

// Last returns the highest-sequence entry, or nil when empty.
func (s *MemoryStorage) Last(_ context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, nil
	}
	clone := *s.entries[len(s.entries)-1]
	return &clone, nil
}

// Range returns entries in [fromSeq, toSeq] ordered by sequence number.
func (s *MemoryStorage) Range(_ context.Context, fromSeq, toSeq int64) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Entry
	for _, entry := range s.entries {
		if entry.SequenceNumber < fromSeq || entry.SequenceNumber > toSeq {
			continue
		}
		clone := *entry
		out = append(out, &clone)
	}
	return out, nil
}

// Count returns the number of stored entries.
func (s *MemoryStorage) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries)), nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}

// Tamper overwrites a stored entry field in place. Test hook only; the
// SQLite backend rejects this by trigger.
func (s *MemoryStorage) Tamper(seq int64, mutate func(*Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.SequenceNumber == seq {
			mutate(entry)
			return true
		}
	}
	return false
}
