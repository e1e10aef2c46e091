package enforce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/telemetry/metrics"
	"fleethq/governor/pkg/violation"
)

// Context keys asserting that additional controls were satisfied before
// the operation reached enforcement.
const (
	ContextKeyDualControl = "dualControlVerified"
	ContextKeyMFA         = "mfaVerified"
	ContextKeySubject     = "subjectId"
)

// PolicySource supplies the active policies for an operation type.
type PolicySource interface {
	ActivePolicies(operationType string) []*policy.Policy
}

// ModeResolver resolves a policy's effective mode and maps severities to
// approval tiers.
type ModeResolver interface {
	ResolveMode(p *policy.Policy) (policy.Mode, bool)
	ResolveApprovalLevel(severity policy.Severity) policy.ApprovalLevel
}

// ViolationRecorder opens violation cases.
type ViolationRecorder interface {
	Record(ctx context.Context, report violation.Report) (*violation.Violation, error)
}

// AuditLog appends enforcement events to the audit chain.
type AuditLog interface {
	Append(ctx context.Context, event audit.Event) (*audit.Entry, error)
}

// Config holds coordinator settings.
type Config struct {
	// Timeout bounds one enforcement call end to end, audit and violation
	// writes included. Zero disables the bound.
	Timeout time.Duration
}

// DefaultConfig returns the default coordinator settings.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

// Coordinator evaluates active policies against operation contexts and
// produces enforcement decisions.
type Coordinator struct {
	policies PolicySource
	resolver ModeResolver
	recorder ViolationRecorder
	auditLog AuditLog
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   Config
}

// New creates an enforcement coordinator.
func New(policies PolicySource, resolver ModeResolver, recorder ViolationRecorder,
	auditLog AuditLog, m *metrics.Metrics, logger *slog.Logger, config Config) (*Coordinator, error) {
	if policies == nil || resolver == nil || recorder == nil || auditLog == nil {
		return nil, fmt.Errorf("coordinator requires policy source, resolver, recorder, and audit log")
	}
	if logger == nil {
		logger = slog.Default().With("component", "enforce.coordinator")
	}
	return &Coordinator{
		policies: policies,
		resolver: resolver,
		recorder: recorder,
		auditLog: auditLog,
		metrics:  m,
		logger:   logger,
		config:   config,
	}, nil
}

// enforcementEvent is the audit payload for one enforcement call.
type enforcementEvent struct {
	OperationType      string          `json:"operationType"`
	ActorID            string          `json:"actorId"`
	SubjectID          string          `json:"subjectId"`
	Allowed            bool            `json:"allowed"`
	RequiresApproval   bool            `json:"requiresApproval"`
	ApprovalLevel      string          `json:"approvalLevel"`
	EvaluatedPolicyIDs []string        `json:"evaluatedPolicyIds"`
	Policies           []PolicyOutcome `json:"policies"`
}

// Enforce evaluates all active policies for the operation type against
// the context and returns the aggregated decision.
//
// The audit entry is appended before the decision is surfaced; an
// append failure aborts the call with an audit.WriteError and the
// caller must deny the operation. Violation recording happens after the
// append and never fails the call.
func (c *Coordinator) Enforce(ctx context.Context, operationType, actorID string, opCtx map[string]any) (*Decision, error) {
	start := time.Now()
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	active := c.policies.ActivePolicies(operationType)
	subjectID := subjectFromContext(opCtx, actorID)

	decision := &Decision{
		Allowed:            true,
		ApprovalLevel:      policy.ApprovalNone,
		Violations:         []*violation.Violation{},
		EvaluatedPolicyIDs: make([]string, 0, len(active)),
	}

	outcomes := make([]PolicyOutcome, 0, len(active))
	var violated []*policy.Policy

	for _, p := range active {
		decision.EvaluatedPolicyIDs = append(decision.EvaluatedPolicyIDs, p.ID)

		satisfied := p.ConditionsSatisfied(opCtx) && controlsSatisfied(p, opCtx)
		if c.metrics != nil {
			c.metrics.RecordEvaluation(p.Code, satisfied)
		}

		effectiveMode, downgraded := c.resolver.ResolveMode(p)
		outcome := PolicyOutcome{
			PolicyID:      p.ID,
			PolicyCode:    p.Code,
			Mode:          p.Mode,
			EffectiveMode: effectiveMode,
			Downgraded:    downgraded,
			Violated:      !satisfied,
			Outcome:       OutcomePass,
		}

		if !satisfied {
			violated = append(violated, p)
			switch effectiveMode {
			case policy.ModeMonitor:
				outcome.Outcome = OutcomeMonitor
			case policy.ModeHumanInLoop:
				outcome.Outcome = OutcomeApprovalRequired
				decision.RequiresApproval = true
				level := c.resolver.ResolveApprovalLevel(p.Severity)
				decision.ApprovalLevel = policy.MaxApproval(decision.ApprovalLevel, level)
			case policy.ModeAutonomous:
				outcome.Outcome = OutcomeBlocked
				decision.Allowed = false
			}
		}
		outcomes = append(outcomes, outcome)
	}

	// A blocked operation is not additionally held for approval.
	if !decision.Allowed {
		decision.RequiresApproval = false
		decision.ApprovalLevel = policy.ApprovalNone
	}

	event := audit.Event{
		ActorID: actorID,
		Type:    audit.EventTypeEnforcement,
		Payload: enforcementEvent{
			OperationType:      operationType,
			ActorID:            actorID,
			SubjectID:          subjectID,
			Allowed:            decision.Allowed,
			RequiresApproval:   decision.RequiresApproval,
			ApprovalLevel:      string(decision.ApprovalLevel),
			EvaluatedPolicyIDs: decision.EvaluatedPolicyIDs,
			Policies:           outcomes,
		},
	}
	if _, err := c.auditLog.Append(ctx, event); err != nil {
		if c.metrics != nil {
			c.metrics.RecordAuditFailure()
		}
		c.logger.Error("audit append failed, denying operation",
			"operation_type", operationType,
			"actor_id", actorID,
			"error", err,
		)
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordAuditAppend(audit.EventTypeEnforcement)
	}

	for _, p := range violated {
		v, err := c.recorder.Record(ctx, violation.Report{
			Policy:        p,
			SubjectID:     subjectID,
			OperationType: operationType,
			Context:       opCtx,
		})
		if err != nil {
			if c.metrics != nil {
				c.metrics.RecordViolationFailure()
			}
			c.logger.Error("violation record failed",
				"policy_code", p.Code,
				"subject_id", subjectID,
				"error", err,
			)
			continue
		}
		if c.metrics != nil {
			c.metrics.RecordViolation(p.Code, string(p.Severity))
		}
		decision.Violations = append(decision.Violations, v)
	}

	if c.metrics != nil {
		c.metrics.RecordEnforcement(operationType, outcomeLabel(decision), time.Since(start))
	}
	c.logger.Info("enforcement decision",
		"operation_type", operationType,
		"actor_id", actorID,
		"allowed", decision.Allowed,
		"requires_approval", decision.RequiresApproval,
		"policies_evaluated", len(decision.EvaluatedPolicyIDs),
		"violations", len(decision.Violations),
	)
	return decision, nil
}

// controlsSatisfied checks the dual-control and MFA assertions. A policy
// demanding a control that the context does not assert is violated
// regardless of its conditions.
func controlsSatisfied(p *policy.Policy, opCtx map[string]any) bool {
	if p.RequiresDualControl && !contextAsserts(opCtx, ContextKeyDualControl) {
		return false
	}
	if p.RequiresMFA && !contextAsserts(opCtx, ContextKeyMFA) {
		return false
	}
	return true
}

func contextAsserts(opCtx map[string]any, key string) bool {
	v, ok := opCtx[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func subjectFromContext(opCtx map[string]any, actorID string) string {
	if v, ok := opCtx[ContextKeySubject]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return actorID
}

func outcomeLabel(d *Decision) string {
	switch {
	case !d.Allowed:
		return "block"
	case d.RequiresApproval:
		return "approval_required"
	default:
		return "allow"
	}
}
