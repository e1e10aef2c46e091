package violation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fleethq/governor/pkg/policy"
)

// Config holds recorder settings.
type Config struct {
	// Ladder is the disciplinary escalation sequence indexed by offense
	// number. Offenses past the end repeat the final step.
	Ladder []DisciplinaryAction
}

// DefaultConfig returns a config with the standard four-step ladder.
func DefaultConfig() Config {
	return Config{Ladder: DefaultLadder()}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Ladder) == 0 {
		return fmt.Errorf("disciplinary ladder must have at least one step")
	}
	for i, step := range c.Ladder {
		switch step {
		case ActionVerbalWarning, ActionWrittenWarning, ActionSuspension, ActionTermination:
		default:
			return fmt.Errorf("ladder step %d: unknown disciplinary action %q", i+1, step)
		}
	}
	return nil
}

// Report describes a violation to record.
type Report struct {
	Policy        *policy.Policy
	SubjectID     string
	OperationType string
	Context       map[string]any
}

// Recorder creates violation cases and drives their status lifecycle.
type Recorder struct {
	storage Storage
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a recorder over the given storage.
func New(storage Storage, config Config, logger *slog.Logger) (*Recorder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recorder config: %w", err)
	}
	if logger == nil {
		logger = slog.Default().With("component", "violation.recorder")
	}
	return &Recorder{
		storage: storage,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Record opens a violation case. The offense count is assigned inside
// the storage transaction; the repeat flag and suggested action are
// derived from it before the row is written.
func (r *Recorder) Record(ctx context.Context, report Report) (*Violation, error) {
	if report.Policy == nil {
		return nil, fmt.Errorf("violation report requires a policy")
	}
	if report.SubjectID == "" {
		return nil, fmt.Errorf("violation report requires a subject")
	}

	now := r.now().UTC()
	v := &Violation{
		ID:            uuid.NewString(),
		PolicyID:      report.Policy.ID,
		PolicyCode:    report.Policy.Code,
		SubjectID:     report.SubjectID,
		OperationType: report.OperationType,
		Severity:      report.Policy.Severity,
		Status:        StatusOpen,
		Context:       report.Context,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := r.storage.Insert(ctx, v, func(v *Violation) {
		v.IsRepeatOffense = v.OffenseCount > 1
		v.SuggestedAction = r.SuggestedAction(v.OffenseCount)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("violation recorded",
		"violation_id", v.ID,
		"policy_code", v.PolicyCode,
		"subject_id", v.SubjectID,
		"offense_count", v.OffenseCount,
		"suggested_action", v.SuggestedAction,
	)
	return v, nil
}

// SuggestedAction maps an offense number onto the escalation ladder.
func (r *Recorder) SuggestedAction(offenseCount int) DisciplinaryAction {
	if offenseCount < 1 {
		offenseCount = 1
	}
	if offenseCount > len(r.config.Ladder) {
		offenseCount = len(r.config.Ladder)
	}
	return r.config.Ladder[offenseCount-1]
}

// Transition moves a case to a new status, enforcing the case state
// machine.
func (r *Recorder) Transition(ctx context.Context, id string, to CaseStatus) (*Violation, error) {
	if _, err := ParseCaseStatus(string(to)); err != nil {
		return nil, err
	}
	v, err := r.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(v.Status, to) {
		return nil, &InvalidCaseTransitionError{ViolationID: id, From: v.Status, To: to}
	}
	if err := r.storage.UpdateStatus(ctx, id, to); err != nil {
		return nil, err
	}
	r.logger.Info("violation case transitioned",
		"violation_id", id,
		"from", v.Status,
		"to", to,
	)
	v.Status = to
	return v, nil
}

// Get returns a violation by ID.
func (r *Recorder) Get(ctx context.Context, id string) (*Violation, error) {
	return r.storage.Get(ctx, id)
}

// List returns violations matching the filter.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]*Violation, error) {
	return r.storage.List(ctx, filter)
}
