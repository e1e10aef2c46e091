package policy

import (
	"fmt"
	"time"
)

// Mode determines how a violated policy affects the guarded operation.
type Mode string

const (
	// ModeMonitor records and audits violations but never blocks the
	// operation. Use this to trial new policies against live traffic.
	ModeMonitor Mode = "monitor"

	// ModeHumanInLoop holds the operation for human approval. The decision
	// carries an approval level derived from the policy severity; the
	// approval itself is delivered by an external workflow system.
	ModeHumanInLoop Mode = "human_in_loop"

	// ModeAutonomous blocks the operation immediately, with no approval
	// path. Autonomous enforcement is gated by the policy confidence
	// threshold; low-confidence policies are downgraded to human-in-loop.
	ModeAutonomous Mode = "autonomous"
)

// ParseMode parses a mode string, rejecting unknown values.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMonitor, ModeHumanInLoop, ModeAutonomous:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// LifecycleState tracks a policy through its administrative lifecycle.
// Only Active policies are ever evaluated.
type LifecycleState string

const (
	StateDraft           LifecycleState = "draft"
	StatePendingApproval LifecycleState = "pending_approval"
	StateActive          LifecycleState = "active"
	StateArchived        LifecycleState = "archived"
	StateSuperseded      LifecycleState = "superseded"
)

// Severity classifies how serious a violation of a policy is. Severity
// drives approval-level routing and the max-severity aggregation across
// policies in a single enforcement decision.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySerious  Severity = "serious"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for max aggregation.
var severityRank = map[Severity]int{
	SeverityMinor:    1,
	SeverityModerate: 2,
	SeveritySerious:  3,
	SeverityCritical: 4,
}

// ParseSeverity parses a severity string. The legacy aliases "low",
// "medium", and "high" map to minor, moderate, and serious.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case string(SeverityMinor), "low":
		return SeverityMinor, nil
	case string(SeverityModerate), "medium":
		return SeverityModerate, nil
	case string(SeveritySerious), "high":
		return SeveritySerious, nil
	case string(SeverityCritical):
		return SeverityCritical, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
	}
}

// Rank returns the ordering rank of the severity (higher is more severe).
// Unknown severities rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ApprovalLevel is the human approval tier required to release a held
// operation.
type ApprovalLevel string

const (
	ApprovalNone       ApprovalLevel = "none"
	ApprovalSupervisor ApprovalLevel = "supervisor"
	ApprovalManager    ApprovalLevel = "manager"
	ApprovalExecutive  ApprovalLevel = "executive"
)

// approvalRank orders approval levels so the strictest requirement wins
// when multiple policies flag the same operation.
var approvalRank = map[ApprovalLevel]int{
	ApprovalNone:       0,
	ApprovalSupervisor: 1,
	ApprovalManager:    2,
	ApprovalExecutive:  3,
}

// Rank returns the ordering rank of the approval level.
func (a ApprovalLevel) Rank() int {
	return approvalRank[a]
}

// MaxApproval returns the stricter of a and b.
func MaxApproval(a, b ApprovalLevel) ApprovalLevel {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Policy is a versioned rule bundle. A policy guards one operation type
// with an ordered list of conditions; the conditions describe the
// compliant state, so conditions evaluating to false constitute a
// candidate violation.
type Policy struct {
	// ID is the stable unique identifier (UUID).
	ID string `json:"id" yaml:"id"`

	// Code is the human-readable policy code (e.g. "FLT-SAF-001").
	// Exactly one Active policy may exist per code lineage at any time.
	Code string `json:"code" yaml:"code"`

	// Version increases monotonically within a code lineage. Assigned at
	// creation time by the repository.
	Version int `json:"version" yaml:"version"`

	// Name is a short human-readable title.
	Name string `json:"name" yaml:"name"`

	// Description explains what the policy guards and why.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// OperationType selects the business operations this policy applies to
	// (e.g. "vehicle_dispatch").
	OperationType string `json:"operationType" yaml:"operation_type"`

	// Conditions describe the compliant state, combined with AND. An empty
	// list is always satisfied.
	Conditions []Condition `json:"conditions" yaml:"conditions"`

	// Mode is the enforcement mode applied when the policy is violated.
	Mode Mode `json:"mode" yaml:"mode"`

	// Severity is attributed to violations of this policy.
	Severity Severity `json:"severity" yaml:"severity"`

	// Confidence is the AI-assigned confidence score for this policy,
	// in [0,1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// ConfidenceThreshold gates autonomous enforcement. When Confidence is
	// below the threshold, the policy is never auto-enforced: autonomous
	// mode downgrades to human-in-loop for the evaluation.
	ConfidenceThreshold float64 `json:"confidenceThreshold" yaml:"confidence_threshold"`

	// RequiresDualControl demands the operation context assert dual-control
	// verification; absent or false, the policy counts as violated
	// regardless of its conditions.
	RequiresDualControl bool `json:"requiresDualControl" yaml:"requires_dual_control"`

	// RequiresMFA demands the operation context assert MFA verification.
	RequiresMFA bool `json:"requiresMFA" yaml:"requires_mfa"`

	// LifecycleState is the current lifecycle state.
	LifecycleState LifecycleState `json:"lifecycleState" yaml:"lifecycle_state"`

	// Supersedes optionally references the prior policy ID this version
	// replaces. Activation supersedes the referenced policy atomically.
	Supersedes string `json:"supersedes,omitempty" yaml:"supersedes,omitempty"`

	// ReviewCycleMonths sets the review cadence stamped at activation.
	ReviewCycleMonths int `json:"reviewCycleMonths" yaml:"review_cycle_months"`

	// EffectiveDate is stamped when the policy becomes Active.
	EffectiveDate *time.Time `json:"effectiveDate,omitempty" yaml:"effective_date,omitempty"`

	// NextReviewDate is EffectiveDate plus the review cycle.
	NextReviewDate *time.Time `json:"nextReviewDate,omitempty" yaml:"next_review_date,omitempty"`

	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updated_at"`
}

// Validate checks the policy for configuration errors. It is called at
// creation and again at activation so a malformed policy can never
// become Active.
func (p *Policy) Validate() error {
	if p.Code == "" {
		return &ValidationError{PolicyID: p.ID, Reason: "code is required"}
	}
	if p.OperationType == "" {
		return &ValidationError{PolicyID: p.ID, Reason: "operation type is required"}
	}
	if _, err := ParseMode(string(p.Mode)); err != nil {
		return &ValidationError{PolicyID: p.ID, Reason: fmt.Sprintf("invalid mode %q", p.Mode)}
	}
	if p.Severity.Rank() == 0 {
		return &ValidationError{PolicyID: p.ID, Reason: fmt.Sprintf("invalid severity %q", p.Severity)}
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return &ValidationError{PolicyID: p.ID, Reason: fmt.Sprintf("confidence %v outside [0,1]", p.Confidence)}
	}
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return &ValidationError{PolicyID: p.ID, Reason: fmt.Sprintf("confidence threshold %v outside [0,1]", p.ConfidenceThreshold)}
	}
	if p.ReviewCycleMonths < 0 {
		return &ValidationError{PolicyID: p.ID, Reason: "review cycle months cannot be negative"}
	}
	for i := range p.Conditions {
		if err := p.Conditions[i].validate(); err != nil {
			return &ValidationError{PolicyID: p.ID, Reason: fmt.Sprintf("condition %d: %v", i, err)}
		}
	}
	return nil
}

// ConditionsSatisfied reports whether every condition holds against the
// operation context. An empty condition list is always satisfied.
func (p *Policy) ConditionsSatisfied(opCtx map[string]any) bool {
	return EvaluateAll(p.Conditions, opCtx)
}

// IsActive reports whether the policy is in the Active lifecycle state.
func (p *Policy) IsActive() bool {
	return p.LifecycleState == StateActive
}

// Clone returns a deep copy of the policy. Snapshots handed to concurrent
// readers are built from clones so repository writes never mutate a
// policy a reader holds.
func (p *Policy) Clone() *Policy {
	cp := *p
	if p.Conditions != nil {
		cp.Conditions = make([]Condition, len(p.Conditions))
		copy(cp.Conditions, p.Conditions)
	}
	if p.EffectiveDate != nil {
		t := *p.EffectiveDate
		cp.EffectiveDate = &t
	}
	if p.NextReviewDate != nil {
		t := *p.NextReviewDate
		cp.NextReviewDate = &t
	}
	return &cp
}
