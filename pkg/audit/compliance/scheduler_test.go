package compliance

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/policy"
)

type staticReviewer []*policy.Policy

func (s staticReviewer) ActivePastReview(time.Time) []*policy.Policy {
	return s
}

func newChain(t *testing.T, entries int) (*audit.Log, *audit.MemoryStorage) {
	t.Helper()
	storage := audit.NewMemoryStorage()
	log := audit.NewLog(storage, nil)
	for i := 0; i < entries; i++ {
		if _, err := log.Append(context.Background(), audit.Event{
			ActorID: "system",
			Type:    audit.EventTypeEnforcement,
			Payload: map[string]any{"i": i},
		}); err != nil {
			t.Fatal(err)
		}
	}
	return log, storage
}

func lastEntry(t *testing.T, log *audit.Log) *audit.Entry {
	t.Helper()
	entries, err := log.Entries(context.Background(), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("chain is empty")
	}
	return entries[len(entries)-1]
}

func TestRunVerification_IntactChain(t *testing.T) {
	log, _ := newChain(t, 5)
	s, err := New(log, log, nil, nil, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}

	result := s.RunVerification(context.Background())
	if result == nil || !result.Valid {
		t.Fatalf("intact chain flagged: %+v", result)
	}
	// No alert appended for a clean pass.
	if last := lastEntry(t, log); last.EventType == audit.EventTypeComplianceAlert {
		t.Error("clean verification raised an alert")
	}
}

func TestRunVerification_TamperRaisesAlert(t *testing.T) {
	log, storage := newChain(t, 5)
	if !storage.Tamper(3, func(e *audit.Entry) {
		e.Payload = []byte(`{"i":999}`)
	}) {
		t.Fatal("tamper target not found")
	}

	s, err := New(log, log, nil, nil, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	result := s.RunVerification(context.Background())
	if result == nil || result.Valid {
		t.Fatal("tampered chain passed verification")
	}

	last := lastEntry(t, log)
	if last.EventType != audit.EventTypeComplianceAlert {
		t.Fatalf("no compliance alert appended, last event %q", last.EventType)
	}
	var payload map[string]any
	if err := json.Unmarshal(last.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["alert"] != "chain_tamper_detected" {
		t.Errorf("alert payload: %v", payload)
	}
	if payload["firstInvalidSequence"] != float64(3) {
		t.Errorf("first invalid sequence in alert: %v", payload["firstInvalidSequence"])
	}
}

func TestRunReviewSweep_FlagsOverduePolicies(t *testing.T) {
	log, _ := newChain(t, 1)
	past := time.Now().Add(-24 * time.Hour)
	overdue := &policy.Policy{
		ID:             "pol-1",
		Code:           "FLT-SAF-001",
		NextReviewDate: &past,
	}

	s, err := New(log, log, staticReviewer{overdue}, nil, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	flagged := s.RunReviewSweep(context.Background())
	if len(flagged) != 1 {
		t.Fatalf("flagged %d policies", len(flagged))
	}

	last := lastEntry(t, log)
	if last.EventType != audit.EventTypeComplianceAlert {
		t.Fatalf("no review alert appended, last event %q", last.EventType)
	}
	var payload map[string]any
	if err := json.Unmarshal(last.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["alert"] != "policy_review_overdue" {
		t.Errorf("alert payload: %v", payload)
	}
}

func TestRunReviewSweep_NothingOverdue(t *testing.T) {
	log, _ := newChain(t, 1)
	s, err := New(log, log, staticReviewer{}, nil, nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if flagged := s.RunReviewSweep(context.Background()); len(flagged) != 0 {
		t.Errorf("flagged %d policies from an empty set", len(flagged))
	}
	if last := lastEntry(t, log); last.EventType == audit.EventTypeComplianceAlert {
		t.Error("empty sweep raised an alert")
	}
}

func TestStart_RejectsBadSchedule(t *testing.T) {
	log, _ := newChain(t, 1)
	s, err := New(log, log, nil, nil, nil, Config{VerifySchedule: "not a schedule"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("invalid cron expression accepted")
	}
}
