package enforce

import (
	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/violation"
)

// Decision is the outcome of one enforcement call.
type Decision struct {
	// Allowed is false when any violated policy runs in autonomous mode.
	Allowed bool `json:"allowed"`

	// RequiresApproval is true when a violated human-in-loop policy holds
	// the operation for external approval. It is never set on a blocked
	// decision; blocking dominates.
	RequiresApproval bool `json:"requiresApproval"`

	// ApprovalLevel is the strictest approval tier across the policies
	// that require approval, or "none".
	ApprovalLevel policy.ApprovalLevel `json:"approvalLevel"`

	// Violations lists the cases recorded for this call.
	Violations []*violation.Violation `json:"violations"`

	// EvaluatedPolicyIDs lists every policy examined, violated or not.
	EvaluatedPolicyIDs []string `json:"evaluatedPolicyIds"`
}

// PolicyOutcome is the per-policy record embedded in the audit payload.
type PolicyOutcome struct {
	PolicyID      string      `json:"policyId"`
	PolicyCode    string      `json:"policyCode"`
	Mode          policy.Mode `json:"mode"`
	EffectiveMode policy.Mode `json:"effectiveMode"`
	Downgraded    bool        `json:"confidenceDowngraded,omitempty"`
	Violated      bool        `json:"violated"`
	Outcome       string      `json:"outcome"`
}

// Per-policy outcome labels.
const (
	OutcomePass             = "pass"
	OutcomeMonitor          = "monitor"
	OutcomeApprovalRequired = "approval_required"
	OutcomeBlocked          = "blocked"
)
