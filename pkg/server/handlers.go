package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/policy/repository"
	"fleethq/governor/pkg/violation"
)

// actorHeader identifies the acting principal on administrative calls.
const actorHeader = "X-Actor-Id"

type errorResponse struct {
	Error string `json:"error"`
}

type enforceRequest struct {
	OperationType string         `json:"operationType"`
	ActorID       string         `json:"actorId"`
	Context       map[string]any `json:"context"`
}

func (s *Server) handleEnforce(w http.ResponseWriter, r *http.Request) {
	var req enforceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OperationType == "" {
		writeError(w, http.StatusBadRequest, "operationType is required")
		return
	}
	actor := req.ActorID
	if actor == "" {
		actor = actorFrom(r)
	}

	decision, err := s.coordinator.Enforce(r.Context(), req.OperationType, actor, req.Context)
	if err != nil {
		if audit.IsWriteError(err) {
			// No audit record, no decision. The caller must deny.
			writeError(w, http.StatusServiceUnavailable, "audit trail unavailable, operation denied")
			return
		}
		s.logger.Error("enforce failed", "error", err)
		writeError(w, http.StatusInternalServerError, "enforcement failed")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var draft policy.Policy
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid policy document: "+err.Error())
		return
	}
	created, err := s.policies.Create(r.Context(), &draft)
	if err != nil {
		s.writePolicyError(w, err)
		return
	}
	s.auditLifecycle(r, "create", created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	filter := repository.Filter{
		Code:          r.URL.Query().Get("code"),
		OperationType: r.URL.Query().Get("operation_type"),
		State:         policy.LifecycleState(r.URL.Query().Get("state")),
	}
	list, err := s.policies.List(r.Context(), filter)
	if err != nil {
		s.writePolicyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.policies.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writePolicyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSubmitPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.policies.SubmitForApproval(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writePolicyError(w, err)
		return
	}
	s.auditLifecycle(r, "submit_for_approval", p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleActivatePolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.policies.Activate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writePolicyError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SetActivePolicies(s.activeCount(r.Context()))
	}
	s.auditLifecycle(r, "activate", p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleArchivePolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.policies.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writePolicyError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SetActivePolicies(s.activeCount(r.Context()))
	}
	s.auditLifecycle(r, "archive", p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListViolations(w http.ResponseWriter, r *http.Request) {
	filter := violation.Filter{
		PolicyID:      r.URL.Query().Get("policy"),
		SubjectID:     r.URL.Query().Get("subject"),
		OperationType: r.URL.Query().Get("operation_type"),
		Status:        violation.CaseStatus(r.URL.Query().Get("status")),
	}
	list, err := s.violations.List(r.Context(), filter)
	if err != nil {
		s.writeViolationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetViolation(w http.ResponseWriter, r *http.Request) {
	v, err := s.violations.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeViolationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleViolationStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := violation.ParseCaseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	before, err := s.violations.Get(r.Context(), id)
	if err != nil {
		s.writeViolationError(w, err)
		return
	}
	v, err := s.violations.Transition(r.Context(), id, status)
	if err != nil {
		s.writeViolationError(w, err)
		return
	}

	_, err = s.auditLog.Append(r.Context(), audit.Event{
		ActorID: actorFrom(r),
		Type:    audit.EventTypeCaseTransition,
		Payload: map[string]any{
			"violationId": v.ID,
			"policyId":    v.PolicyID,
			"subjectId":   v.SubjectID,
			"from":        before.Status,
			"to":          v.Status,
		},
	})
	if err != nil {
		s.logger.Error("case transition audit append failed", "violation_id", v.ID, "error", err)
	} else if s.metrics != nil {
		s.metrics.RecordAuditAppend(audit.EventTypeCaseTransition)
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	from, to, ok := sequenceRange(w, r)
	if !ok {
		return
	}
	result, err := s.auditLog.VerifyChain(r.Context(), from, to)
	if err != nil {
		s.logger.Error("chain verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordChainVerification(result.Valid)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAuditEntries(w http.ResponseWriter, r *http.Request) {
	from, to, ok := sequenceRange(w, r)
	if !ok {
		return
	}
	entries, err := s.auditLog.Entries(r.Context(), from, to)
	if err != nil {
		s.logger.Error("audit read failed", "error", err)
		writeError(w, http.StatusInternalServerError, "audit read failed")
		return
	}
	if entries == nil {
		entries = []*audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auditLifecycle records an administrative policy mutation. Append
// failures are logged; the mutation has already committed.
func (s *Server) auditLifecycle(r *http.Request, action string, p *policy.Policy) {
	_, err := s.auditLog.Append(r.Context(), audit.Event{
		ActorID: actorFrom(r),
		Type:    audit.EventTypePolicyLifecycle,
		Payload: map[string]any{
			"action":         action,
			"policyId":       p.ID,
			"policyCode":     p.Code,
			"version":        p.Version,
			"lifecycleState": p.LifecycleState,
		},
	})
	if err != nil {
		s.logger.Error("lifecycle audit append failed",
			"action", action,
			"policy_id", p.ID,
			"error", err,
		)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordAuditAppend(audit.EventTypePolicyLifecycle)
	}
}

func (s *Server) activeCount(ctx context.Context) int {
	list, err := s.policies.List(ctx, repository.Filter{State: policy.StateActive})
	if err != nil {
		return 0
	}
	return len(list)
}

func (s *Server) writePolicyError(w http.ResponseWriter, err error) {
	var validation *policy.ValidationError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "policy not found")
	case repository.IsInvalidStateTransition(err):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("policy operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "policy operation failed")
	}
}

func (s *Server) writeViolationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, violation.ErrNotFound):
		writeError(w, http.StatusNotFound, "violation not found")
	case violation.IsInvalidCaseTransition(err):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("violation operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "violation operation failed")
	}
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get(actorHeader); actor != "" {
		return actor
	}
	return "unknown"
}

func sequenceRange(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	parse := func(key string) (int64, bool) {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			return 0, true
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+key+" parameter")
			return 0, false
		}
		return n, true
	}
	from, ok := parse("from")
	if !ok {
		return 0, 0, false
	}
	to, ok := parse("to")
	if !ok {
		return 0, 0, false
	}
	return from, to, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
