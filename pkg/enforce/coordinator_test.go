package enforce

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/policy/resolver"
	"fleethq/governor/pkg/violation"
)

type staticPolicies []*policy.Policy

func (s staticPolicies) ActivePolicies(operationType string) []*policy.Policy {
	var out []*policy.Policy
	for _, p := range s {
		if p.OperationType == operationType {
			out = append(out, p)
		}
	}
	return out
}

type failingAudit struct{}

func (failingAudit) Append(context.Context, audit.Event) (*audit.Entry, error) {
	return nil, &audit.WriteError{EventType: audit.EventTypeEnforcement, Cause: errors.New("disk full")}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, violation.Report) (*violation.Violation, error) {
	return nil, errors.New("insert failed")
}

func safetyPolicy(mode policy.Mode) *policy.Policy {
	ack, err := policy.NewCondition("acknowledged", "equals", true)
	if err != nil {
		panic(err)
	}
	return &policy.Policy{
		ID:                  "pol-" + string(mode),
		Code:                "FLT-SAF-001",
		Version:             1,
		OperationType:       "vehicle_dispatch",
		Conditions:          []policy.Condition{ack},
		Mode:                mode,
		Severity:            policy.SeveritySerious,
		Confidence:          0.95,
		ConfidenceThreshold: 0.90,
		LifecycleState:      policy.StateActive,
	}
}

type fixture struct {
	coordinator *Coordinator
	auditLog    *audit.Log
	violations  *violation.MemoryStorage
}

func newFixture(t *testing.T, policies ...*policy.Policy) *fixture {
	t.Helper()
	violations := violation.NewMemoryStorage()
	recorder, err := violation.New(violations, violation.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	auditLog := audit.NewLog(audit.NewMemoryStorage(), nil)
	c, err := New(staticPolicies(policies), resolver.New(nil, nil), recorder, auditLog, nil, nil, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{coordinator: c, auditLog: auditLog, violations: violations}
}

func TestEnforce_AutonomousBlocks(t *testing.T) {
	f := newFixture(t, safetyPolicy(policy.ModeAutonomous))

	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"oshaRecordable": true, "acknowledged": false})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Error("violated autonomous policy did not block")
	}
	if d.RequiresApproval {
		t.Error("blocked decision also requires approval")
	}
	if len(d.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(d.Violations))
	}
	v := d.Violations[0]
	if v.Severity != policy.SeveritySerious || v.SubjectID != "driver-42" {
		t.Errorf("violation fields: %+v", v)
	}

	entries, err := f.auditLog.Entries(context.Background(), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].EventType != audit.EventTypeEnforcement {
		t.Fatalf("expected one enforcement audit entry, got %d", len(entries))
	}
}

func TestEnforce_MonitorAllowsButRecords(t *testing.T) {
	f := newFixture(t, safetyPolicy(policy.ModeMonitor))

	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"oshaRecordable": true, "acknowledged": false})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Error("monitor policy blocked the operation")
	}
	if d.RequiresApproval {
		t.Error("monitor policy required approval")
	}
	if len(d.Violations) != 1 {
		t.Errorf("monitor violation not recorded: %d", len(d.Violations))
	}
	entries, _ := f.auditLog.Entries(context.Background(), 1, 0)
	if len(entries) != 1 {
		t.Errorf("expected one audit entry, got %d", len(entries))
	}
}

func TestEnforce_HumanInLoopHoldsForApproval(t *testing.T) {
	f := newFixture(t, safetyPolicy(policy.ModeHumanInLoop))

	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": false})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Error("human-in-loop policy blocked instead of holding")
	}
	if !d.RequiresApproval {
		t.Error("human-in-loop violation did not require approval")
	}
	if d.ApprovalLevel != policy.ApprovalManager {
		t.Errorf("approval level %s, expected manager for serious severity", d.ApprovalLevel)
	}
}

func TestEnforce_ModeDominance(t *testing.T) {
	auto := safetyPolicy(policy.ModeAutonomous)
	monitor := safetyPolicy(policy.ModeMonitor)
	monitor.ID = "pol-monitor-2"
	f := newFixture(t, auto, monitor)

	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": false})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Error("autonomous violation did not dominate monitor violation")
	}
	if len(d.EvaluatedPolicyIDs) != 2 {
		t.Errorf("evaluated %d policies, expected 2", len(d.EvaluatedPolicyIDs))
	}
	if len(d.Violations) != 2 {
		t.Errorf("recorded %d violations, expected 2", len(d.Violations))
	}
}

func TestEnforce_ConfidenceDowngrade(t *testing.T) {
	p := safetyPolicy(policy.ModeAutonomous)
	p.Confidence = 0.80
	p.ConfidenceThreshold = 0.90
	f := newFixture(t, p)

	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": false})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || !d.RequiresApproval {
		t.Errorf("downgraded policy should hold for approval, got allowed=%v requiresApproval=%v",
			d.Allowed, d.RequiresApproval)
	}

	entries, _ := f.auditLog.Entries(context.Background(), 1, 0)
	var event enforcementEvent
	if err := json.Unmarshal(entries[0].Payload, &event); err != nil {
		t.Fatal(err)
	}
	if !event.Policies[0].Downgraded || event.Policies[0].EffectiveMode != policy.ModeHumanInLoop {
		t.Errorf("audit payload missing downgrade: %+v", event.Policies[0])
	}
}

func TestEnforce_SatisfiedConditionsPass(t *testing.T) {
	f := newFixture(t, safetyPolicy(policy.ModeAutonomous))

	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": true})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.RequiresApproval || len(d.Violations) != 0 {
		t.Errorf("clean pass produced %+v", d)
	}
	// Passing evaluations are audited too.
	entries, _ := f.auditLog.Entries(context.Background(), 1, 0)
	if len(entries) != 1 {
		t.Errorf("expected one audit entry for a pass, got %d", len(entries))
	}
}

func TestEnforce_MissingDualControlViolates(t *testing.T) {
	p := safetyPolicy(policy.ModeAutonomous)
	p.RequiresDualControl = true
	f := newFixture(t, p)

	// Conditions satisfied but the dual-control assertion is absent.
	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": true})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Error("missing dual-control assertion did not violate")
	}

	d, err = f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": true, ContextKeyDualControl: true})
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Error("asserted dual control still violated")
	}
}

func TestEnforce_MissingMFAViolates(t *testing.T) {
	p := safetyPolicy(policy.ModeAutonomous)
	p.RequiresMFA = true
	f := newFixture(t, p)

	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": true, ContextKeyMFA: "yes"})
	if err != nil {
		t.Fatal(err)
	}
	// Non-boolean assertions do not count.
	if d.Allowed {
		t.Error("string MFA assertion accepted")
	}
}

func TestEnforce_AuditCompleteness(t *testing.T) {
	f := newFixture(t, safetyPolicy(policy.ModeAutonomous))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.coordinator.Enforce(ctx, "vehicle_dispatch", "driver-42",
			map[string]any{"acknowledged": i%2 == 0}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := f.auditLog.Entries(ctx, 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("3 enforce calls produced %d audit entries", len(entries))
	}
	for _, entry := range entries {
		var event enforcementEvent
		if err := json.Unmarshal(entry.Payload, &event); err != nil {
			t.Fatal(err)
		}
		if len(event.EvaluatedPolicyIDs) != 1 {
			t.Errorf("entry %d: evaluated ids %v", entry.SequenceNumber, event.EvaluatedPolicyIDs)
		}
	}
}

func TestEnforce_AuditFailureIsFatal(t *testing.T) {
	violations := violation.NewMemoryStorage()
	recorder, err := violation.New(violations, violation.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	c, err := New(staticPolicies{safetyPolicy(policy.ModeAutonomous)}, resolver.New(nil, nil),
		recorder, failingAudit{}, nil, nil, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	d, err := c.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": false})
	if d != nil {
		t.Error("decision surfaced without an audit entry")
	}
	if !audit.IsWriteError(err) {
		t.Fatalf("expected audit WriteError, got %v", err)
	}
	// No side effects without the audit record.
	recorded, _ := violations.List(context.Background(), violation.Filter{})
	if len(recorded) != 0 {
		t.Errorf("violations recorded despite audit failure: %d", len(recorded))
	}
}

func TestEnforce_ViolationFailureDegrades(t *testing.T) {
	auditLog := audit.NewLog(audit.NewMemoryStorage(), nil)
	c, err := New(staticPolicies{safetyPolicy(policy.ModeAutonomous)}, resolver.New(nil, nil),
		failingRecorder{}, auditLog, nil, nil, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	d, err := c.Enforce(context.Background(), "vehicle_dispatch", "driver-42",
		map[string]any{"acknowledged": false})
	if err != nil {
		t.Fatalf("recorder failure escalated: %v", err)
	}
	if d.Allowed {
		t.Error("decision changed because recording failed")
	}
	if len(d.Violations) != 0 {
		t.Errorf("unrecorded violations surfaced: %d", len(d.Violations))
	}
}

func TestEnforce_NoApplicablePolicies(t *testing.T) {
	f := newFixture(t)
	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "driver-42", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.RequiresApproval || len(d.EvaluatedPolicyIDs) != 0 {
		t.Errorf("empty policy set decision: %+v", d)
	}
}

func TestEnforce_SubjectFromContext(t *testing.T) {
	f := newFixture(t, safetyPolicy(policy.ModeMonitor))
	d, err := f.coordinator.Enforce(context.Background(), "vehicle_dispatch", "dispatcher-1",
		map[string]any{"acknowledged": false, ContextKeySubject: "driver-42"})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Violations) != 1 || d.Violations[0].SubjectID != "driver-42" {
		t.Errorf("violation attributed to %v, expected driver-42", d.Violations)
	}
}
