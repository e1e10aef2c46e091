package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/config"
	"fleethq/governor/pkg/enforce"
	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/policy/repository"
	"fleethq/governor/pkg/policy/resolver"
	"fleethq/governor/pkg/violation"
)

type testServer struct {
	handler  http.Handler
	repo     *repository.Repository
	auditLog *audit.Log
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	repo, err := repository.New(ctx, repository.NewMemoryStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	recorder, err := violation.New(violation.NewMemoryStorage(), violation.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	auditLog := audit.NewLog(audit.NewMemoryStorage(), nil)
	coordinator, err := enforce.New(repo, resolver.New(nil, nil), recorder, auditLog, nil, nil, enforce.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(config.ServerConfig{}, coordinator, repo, recorder, auditLog, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{handler: srv.Handler(), repo: repo, auditLog: auditLog}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(actorHeader, "admin-1")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return v
}

func draftPolicy() map[string]any {
	return map[string]any{
		"code":                "FLT-SAF-001",
		"operationType":       "vehicle_dispatch",
		"mode":                "autonomous",
		"severity":            "serious",
		"confidence":          0.97,
		"confidenceThreshold": 0.95,
		"conditions": []map[string]any{
			{"field": "acknowledged", "operator": "equals", "value": true},
		},
	}
}

func (ts *testServer) activatePolicy(t *testing.T) policy.Policy {
	t.Helper()
	rec := ts.do(t, "POST", "/policies", draftPolicy())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[policy.Policy](t, rec)
	rec = ts.do(t, "PUT", "/policies/"+created.ID+"/activate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: %d %s", rec.Code, rec.Body.String())
	}
	return decode[policy.Policy](t, rec)
}

func TestPolicyLifecycleEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/policies", draftPolicy())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	created := decode[policy.Policy](t, rec)
	if created.ID == "" || created.LifecycleState != policy.StateDraft {
		t.Errorf("created draft: %+v", created)
	}

	rec = ts.do(t, "PUT", "/policies/"+created.ID+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d", rec.Code)
	}
	rec = ts.do(t, "PUT", "/policies/"+created.ID+"/activate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: %d", rec.Code)
	}
	activated := decode[policy.Policy](t, rec)
	if activated.LifecycleState != policy.StateActive || activated.EffectiveDate == nil {
		t.Errorf("activated: %+v", activated)
	}

	rec = ts.do(t, "PUT", "/policies/"+created.ID+"/archive", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("archive: %d", rec.Code)
	}

	// Each mutation leaves a lifecycle audit event.
	entries, err := ts.auditLog.Entries(context.Background(), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	lifecycle := 0
	for _, e := range entries {
		if e.EventType == audit.EventTypePolicyLifecycle {
			lifecycle++
			if e.ActorID != "admin-1" {
				t.Errorf("lifecycle event actor %q", e.ActorID)
			}
		}
	}
	if lifecycle != 4 {
		t.Errorf("expected 4 lifecycle events, got %d", lifecycle)
	}
}

func TestPolicyEndpoints_Errors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, "POST", "/policies", map[string]any{"code": "X-1", "mode": "loud"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid draft: %d", rec.Code)
	}

	rec = ts.do(t, "GET", "/policies/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing policy: %d", rec.Code)
	}

	created := decode[policy.Policy](t, ts.do(t, "POST", "/policies", draftPolicy()))
	ts.do(t, "PUT", "/policies/"+created.ID+"/activate", nil)
	rec = ts.do(t, "PUT", "/policies/"+created.ID+"/activate", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("double activate: %d %s", rec.Code, rec.Body.String())
	}
}

func TestEnforceEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.activatePolicy(t)

	rec := ts.do(t, "POST", "/enforce", map[string]any{
		"operationType": "vehicle_dispatch",
		"actorId":       "driver-42",
		"context":       map[string]any{"oshaRecordable": true, "acknowledged": false},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("enforce: %d %s", rec.Code, rec.Body.String())
	}
	decision := decode[enforce.Decision](t, rec)
	if decision.Allowed {
		t.Error("violated autonomous policy allowed")
	}
	if len(decision.Violations) != 1 || decision.Violations[0].Severity != policy.SeveritySerious {
		t.Errorf("violations: %+v", decision.Violations)
	}

	rec = ts.do(t, "POST", "/enforce", map[string]any{"context": map[string]any{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing operationType: %d", rec.Code)
	}
}

func TestViolationEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.activatePolicy(t)
	ts.do(t, "POST", "/enforce", map[string]any{
		"operationType": "vehicle_dispatch",
		"actorId":       "driver-42",
		"context":       map[string]any{"acknowledged": false},
	})

	rec := ts.do(t, "GET", "/violations?subject=driver-42", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	list := decode[[]violation.Violation](t, rec)
	if len(list) != 1 {
		t.Fatalf("listed %d violations", len(list))
	}
	id := list[0].ID

	rec = ts.do(t, "PUT", "/violations/"+id+"/status", map[string]any{"status": "under_investigation"})
	if rec.Code != http.StatusOK {
		t.Fatalf("transition: %d %s", rec.Code, rec.Body.String())
	}
	updated := decode[violation.Violation](t, rec)
	if updated.Status != violation.StatusUnderInvestigation {
		t.Errorf("status %s", updated.Status)
	}

	rec = ts.do(t, "PUT", "/violations/"+id+"/status", map[string]any{"status": "open"})
	if rec.Code != http.StatusConflict {
		t.Errorf("invalid transition: %d", rec.Code)
	}
	rec = ts.do(t, "PUT", "/violations/"+id+"/status", map[string]any{"status": "lost"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status: %d", rec.Code)
	}
	rec = ts.do(t, "PUT", "/violations/missing/status", map[string]any{"status": "closed"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing violation: %d", rec.Code)
	}

	// The valid transition left a case event on the chain.
	entries, _ := ts.auditLog.Entries(context.Background(), 1, 0)
	found := false
	for _, e := range entries {
		if e.EventType == audit.EventTypeCaseTransition {
			found = true
		}
	}
	if !found {
		t.Error("no case_transition audit event")
	}
}

func TestAuditEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.activatePolicy(t)
	for i := 0; i < 3; i++ {
		ts.do(t, "POST", "/enforce", map[string]any{
			"operationType": "vehicle_dispatch",
			"actorId":       fmt.Sprintf("driver-%d", i),
			"context":       map[string]any{"acknowledged": true},
		})
	}

	rec := ts.do(t, "GET", "/audit/verify", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d", rec.Code)
	}
	result := decode[audit.VerificationResult](t, rec)
	if !result.Valid || result.EntriesChecked < 4 {
		t.Errorf("verification: %+v", result)
	}

	rec = ts.do(t, "GET", "/audit/entries?from=1&to=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("entries: %d", rec.Code)
	}
	entries := decode[[]audit.Entry](t, rec)
	if len(entries) != 2 {
		t.Errorf("returned %d entries", len(entries))
	}

	rec = ts.do(t, "GET", "/audit/entries?from=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad range: %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, "GET", "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
}
