package violation

import (
	"fmt"
	"time"

	"fleethq/governor/pkg/policy"
)

// CaseStatus is the lifecycle state of a violation case.
type CaseStatus string

const (
	StatusOpen               CaseStatus = "open"
	StatusUnderInvestigation CaseStatus = "under_investigation"
	StatusActionTaken        CaseStatus = "action_taken"
	StatusClosed             CaseStatus = "closed"
	StatusUnderAppeal        CaseStatus = "under_appeal"
)

// ParseCaseStatus validates a case status string.
func ParseCaseStatus(s string) (CaseStatus, error) {
	switch CaseStatus(s) {
	case StatusOpen, StatusUnderInvestigation, StatusActionTaken, StatusClosed, StatusUnderAppeal:
		return CaseStatus(s), nil
	}
	return "", fmt.Errorf("unknown case status %q", s)
}

// caseTransitions lists the permitted next states for each case status.
// An appeal may be raised from any state; appeals resolve by closing.
var caseTransitions = map[CaseStatus][]CaseStatus{
	StatusOpen:               {StatusUnderInvestigation, StatusUnderAppeal},
	StatusUnderInvestigation: {StatusActionTaken, StatusUnderAppeal},
	StatusActionTaken:        {StatusClosed, StatusUnderAppeal},
	StatusClosed:             {StatusUnderAppeal},
	StatusUnderAppeal:        {StatusClosed},
}

// CanTransition reports whether a case may move from one status to
// another.
func CanTransition(from, to CaseStatus) bool {
	for _, next := range caseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DisciplinaryAction is an advisory escalation step suggested for a
// violation. Enforcement of the action is out of scope; the suggestion
// is recorded for human review.
type DisciplinaryAction string

const (
	ActionVerbalWarning  DisciplinaryAction = "verbal_warning"
	ActionWrittenWarning DisciplinaryAction = "written_warning"
	ActionSuspension     DisciplinaryAction = "suspension"
	ActionTermination    DisciplinaryAction = "termination"
)

// DefaultLadder is the standard escalation sequence indexed by offense
// number. Offenses beyond the ladder repeat its final step.
func DefaultLadder() []DisciplinaryAction {
	return []DisciplinaryAction{
		ActionVerbalWarning,
		ActionWrittenWarning,
		ActionSuspension,
		ActionTermination,
	}
}

// Violation is one recorded policy violation and its case state.
type Violation struct {
	// ID is the violation's unique identifier.
	ID string `json:"id"`

	// PolicyID and PolicyCode identify the violated policy version and
	// family. Offense counting keys on PolicyID.
	PolicyID   string `json:"policyId"`
	PolicyCode string `json:"policyCode"`

	// SubjectID identifies who violated the policy.
	SubjectID string `json:"subjectId"`

	// OperationType is the operation that triggered the violation.
	OperationType string `json:"operationType"`

	// Severity is carried from the violated policy.
	Severity policy.Severity `json:"severity"`

	// OffenseCount is the number of violations by this subject against
	// this policy, including this one. Assigned at insert.
	OffenseCount int `json:"offenseCount"`

	// IsRepeatOffense is true when OffenseCount is greater than one.
	IsRepeatOffense bool `json:"isRepeatOffense"`

	// SuggestedAction is the advisory disciplinary step for this offense
	// number.
	SuggestedAction DisciplinaryAction `json:"suggestedAction"`

	// Status is the case lifecycle state.
	Status CaseStatus `json:"caseStatus"`

	// Context is the operation context captured at violation time.
	Context map[string]any `json:"context,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of the violation.
func (v *Violation) Clone() *Violation {
	clone := *v
	if v.Context != nil {
		clone.Context = make(map[string]any, len(v.Context))
		for k, val := range v.Context {
			clone.Context[k] = val
		}
	}
	return &clone
}
