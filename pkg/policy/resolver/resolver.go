// Package resolver maps policy confidence scores to effective enforcement
// modes and violation severities to human approval levels.
package resolver

import (
	"log/slog"

	"fleethq/governor/pkg/policy"
)

// Config contains the resolver's mapping tables. The defaults encode the
// standard business mappings; deployments may override either table.
type Config struct {
	// SeverityApprovals maps violation severity to the approval level
	// required to release a held operation.
	SeverityApprovals map[policy.Severity]policy.ApprovalLevel
}

// DefaultConfig returns the default severity-to-approval mapping:
// critical requires executive approval, serious a manager, moderate a
// supervisor, and minor auto-allows with a warning.
func DefaultConfig() *Config {
	return &Config{
		SeverityApprovals: map[policy.Severity]policy.ApprovalLevel{
			policy.SeverityCritical: policy.ApprovalExecutive,
			policy.SeveritySerious:  policy.ApprovalManager,
			policy.SeverityModerate: policy.ApprovalSupervisor,
			policy.SeverityMinor:    policy.ApprovalNone,
		},
	}
}

// Resolver computes effective enforcement modes and approval levels.
type Resolver struct {
	config *Config
	logger *slog.Logger
}

// New creates a resolver with the provided configuration.
func New(config *Config, logger *slog.Logger) *Resolver {
	if config == nil {
		config = DefaultConfig()
	}
	if config.SeverityApprovals == nil {
		config.SeverityApprovals = DefaultConfig().SeverityApprovals
	}
	if logger == nil {
		logger = slog.Default().With("component", "policy.resolver")
	}
	return &Resolver{config: config, logger: logger}
}

// ResolveMode returns the effective enforcement mode for a policy and
// whether a confidence downgrade occurred. A policy in autonomous mode
// whose confidence falls below its configured threshold is downgraded to
// human-in-loop for the evaluation: a low-confidence policy may never
// autonomously block an operation.
func (r *Resolver) ResolveMode(p *policy.Policy) (policy.Mode, bool) {
	switch p.Mode {
	case policy.ModeMonitor:
		return policy.ModeMonitor, false
	case policy.ModeHumanInLoop:
		return policy.ModeHumanInLoop, false
	case policy.ModeAutonomous:
		if p.Confidence < p.ConfidenceThreshold {
			r.logger.Info("confidence downgrade to human-in-loop",
				"policy_id", p.ID,
				"policy_code", p.Code,
				"confidence", p.Confidence,
				"threshold", p.ConfidenceThreshold,
			)
			return policy.ModeHumanInLoop, true
		}
		return policy.ModeAutonomous, false
	default:
		// Unknown modes cannot reach here for validated policies; hold for
		// a human rather than block or allow on bad data.
		return policy.ModeHumanInLoop, true
	}
}

// ResolveApprovalLevel maps a violation severity to the approval level
// required to release the operation.
func (r *Resolver) ResolveApprovalLevel(sev policy.Severity) policy.ApprovalLevel {
	if lvl, ok := r.config.SeverityApprovals[sev]; ok {
		return lvl
	}
	// Unmapped severities route to the strictest tier.
	return policy.ApprovalExecutive
}
