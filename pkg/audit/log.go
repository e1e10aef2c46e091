package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Log is the append-only, hash-chained audit log. All writes flow through
// Append under a single-writer lock; reads and verification take no lock.
type Log struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time

	// mu serializes appends: sequence assignment and the previous-hash
	// read-then-write must be atomic or concurrent appends would fork the
	// chain.
	mu sync.Mutex
}

// NewLog creates an audit log over the given storage backend.
func NewLog(storage Storage, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default().With("component", "audit.log")
	}
	return &Log{
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// Append serializes the event, links it to the chain head, and persists
// the new entry. It is the only write path. A storage failure returns a
// WriteError and nothing is appended; callers must not surface any
// decision built on an event that failed to append.
func (l *Log) Append(ctx context.Context, event Event) (*Entry, error) {
	if event.Type == "" {
		return nil, &WriteError{EventType: event.Type, Cause: fmt.Errorf("event type is required")}
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, &WriteError{EventType: event.Type, Cause: fmt.Errorf("serialize payload: %w", err)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	last, err := l.storage.Last(ctx)
	if err != nil {
		return nil, &WriteError{EventType: event.Type, Cause: err}
	}

	seq := int64(1)
	previousHash := GenesisHash()
	if last != nil {
		seq = last.SequenceNumber + 1
		previousHash = last.EntryHash
	}

	ts := l.now()
	payloadHash := HashPayload(payload)
	entry := &Entry{
		SequenceNumber: seq,
		Timestamp:      ts,
		ActorID:        event.ActorID,
		EventType:      event.Type,
		Payload:        payload,
		PayloadHash:    payloadHash,
		PreviousHash:   previousHash,
		EntryHash:      ComputeEntryHash(seq, ts, payloadHash, previousHash),
		Algorithm:      AlgorithmSHA256,
	}

	if err := l.storage.Append(ctx, entry); err != nil {
		return nil, &WriteError{EventType: event.Type, Cause: err}
	}

	l.logger.Debug("audit entry appended",
		"sequence", entry.SequenceNumber,
		"event_type", entry.EventType,
		"actor_id", entry.ActorID,
	)
	return entry, nil
}

// VerifyChain recomputes every entry hash in [fromSeq, toSeq] from stored
// fields and the previous entry's stored hash, comparing against the
// stored values. Any mismatch, gap, or payload divergence flags the log
// as tampered at the first offending sequence number. fromSeq below 1 is
// clamped to 1; toSeq of 0 or less means the current chain head.
//
// Verification reads concurrently with appends; entries past toSeq at
// read time are simply outside the verified range. A tampered result is
// a compliance finding, not an error: the error return covers storage
// failures only.
func (l *Log) VerifyChain(ctx context.Context, fromSeq, toSeq int64) (*VerificationResult, error) {
	if fromSeq < 1 {
		fromSeq = 1
	}
	if toSeq <= 0 {
		last, err := l.storage.Last(ctx)
		if err != nil {
			return nil, &StorageError{Operation: "last", Cause: err}
		}
		if last == nil {
			return &VerificationResult{Valid: true, FromSequence: fromSeq, ToSequence: 0}, nil
		}
		toSeq = last.SequenceNumber
	}
	if toSeq < fromSeq {
		return &VerificationResult{Valid: true, FromSequence: fromSeq, ToSequence: toSeq}, nil
	}

	// Anchor the previous hash: genesis for seq 1, otherwise the stored
	// hash of the entry immediately before the range.
	previousHash := GenesisHash()
	if fromSeq > 1 {
		anchor, err := l.storage.Range(ctx, fromSeq-1, fromSeq-1)
		if err != nil {
			return nil, &StorageError{Operation: "range", Cause: err}
		}
		if len(anchor) != 1 {
			return invalidResult(fromSeq, toSeq, 0, fromSeq-1,
				fmt.Sprintf("anchor entry %d missing", fromSeq-1)), nil
		}
		previousHash = anchor[0].EntryHash
	}

	entries, err := l.storage.Range(ctx, fromSeq, toSeq)
	if err != nil {
		return nil, &StorageError{Operation: "range", Cause: err}
	}

	expectedSeq := fromSeq
	var checked int64
	for _, entry := range entries {
		checked++
		if entry.SequenceNumber != expectedSeq {
			return invalidResult(fromSeq, toSeq, checked, expectedSeq,
				fmt.Sprintf("sequence gap: expected %d, found %d", expectedSeq, entry.SequenceNumber)), nil
		}
		if entry.PreviousHash != previousHash {
			return invalidResult(fromSeq, toSeq, checked, entry.SequenceNumber,
				"previous-hash link does not match prior entry"), nil
		}
		if recomputed := HashPayload(entry.Payload); recomputed != entry.PayloadHash {
			return invalidResult(fromSeq, toSeq, checked, entry.SequenceNumber,
				"payload does not match stored payload hash"), nil
		}
		recomputed := ComputeEntryHash(entry.SequenceNumber, entry.Timestamp, entry.PayloadHash, entry.PreviousHash)
		if recomputed != entry.EntryHash {
			return invalidResult(fromSeq, toSeq, checked, entry.SequenceNumber,
				"entry hash does not recompute from stored fields"), nil
		}
		previousHash = entry.EntryHash
		expectedSeq++
	}

	if expectedSeq != toSeq+1 {
		return invalidResult(fromSeq, toSeq, checked, expectedSeq,
			fmt.Sprintf("chain truncated: entries %d..%d missing", expectedSeq, toSeq)), nil
	}

	return &VerificationResult{
		Valid:          true,
		FromSequence:   fromSeq,
		ToSequence:     toSeq,
		EntriesChecked: checked,
	}, nil
}

// Entries returns stored entries in [fromSeq, toSeq] for inspection.
func (l *Log) Entries(ctx context.Context, fromSeq, toSeq int64) ([]*Entry, error) {
	if fromSeq < 1 {
		fromSeq = 1
	}
	if toSeq <= 0 {
		last, err := l.storage.Last(ctx)
		if err != nil {
			return nil, &StorageError{Operation: "last", Cause: err}
		}
		if last == nil {
			return nil, nil
		}
		toSeq = last.SequenceNumber
	}
	return l.storage.Range(ctx, fromSeq, toSeq)
}

// Close releases the underlying storage.
func (l *Log) Close() error {
	return l.storage.Close()
}

func invalidResult(from, to, checked, firstInvalid int64, reason string) *VerificationResult {
	return &VerificationResult{
		Valid:                false,
		FromSequence:         from,
		ToSequence:           to,
		EntriesChecked:       checked,
		FirstInvalidSequence: firstInvalid,
		Reason:               reason,
	}
}
