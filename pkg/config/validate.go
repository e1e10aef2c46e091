package config

import (
	"fmt"

	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/violation"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address is required")
	}
	if cfg.Server.ReadTimeout < 0 || cfg.Server.WriteTimeout < 0 || cfg.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be \"sqlite\" or \"memory\", got %q", cfg.Storage.Driver)
	}

	if cfg.Enforcement.Timeout < 0 {
		return fmt.Errorf("enforcement.timeout must not be negative")
	}
	for sev, lvl := range cfg.Enforcement.SeverityApprovals {
		if _, err := policy.ParseSeverity(sev); err != nil {
			return fmt.Errorf("enforcement.severity_approvals: %w", err)
		}
		switch policy.ApprovalLevel(lvl) {
		case policy.ApprovalNone, policy.ApprovalSupervisor, policy.ApprovalManager, policy.ApprovalExecutive:
		default:
			return fmt.Errorf("enforcement.severity_approvals: unknown approval level %q", lvl)
		}
	}
	for i, step := range cfg.Enforcement.DisciplineLadder {
		switch violation.DisciplinaryAction(step) {
		case violation.ActionVerbalWarning, violation.ActionWrittenWarning,
			violation.ActionSuspension, violation.ActionTermination:
		default:
			return fmt.Errorf("enforcement.discipline_ladder[%d]: unknown action %q", i, step)
		}
	}

	if cfg.Policies.Debounce < 0 {
		return fmt.Errorf("policies.debounce must not be negative")
	}

	if cfg.Telemetry.LogLevel != "" {
		switch cfg.Telemetry.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("telemetry.log_level must be debug, info, warn, or error")
		}
	}
	if cfg.Telemetry.LogFormat != "" {
		switch cfg.Telemetry.LogFormat {
		case "json", "text":
		default:
			return fmt.Errorf("telemetry.log_format must be json or text")
		}
	}

	return nil
}

// ResolverConfig converts the configured severity mapping into resolver
// settings. Returns nil when no override is configured.
func (c *EnforcementConfig) ResolverSeverityApprovals() map[policy.Severity]policy.ApprovalLevel {
	if len(c.SeverityApprovals) == 0 {
		return nil
	}
	out := make(map[policy.Severity]policy.ApprovalLevel, len(c.SeverityApprovals))
	for sev, lvl := range c.SeverityApprovals {
		parsed, err := policy.ParseSeverity(sev)
		if err != nil {
			continue
		}
		out[parsed] = policy.ApprovalLevel(lvl)
	}
	return out
}

// Ladder converts the configured discipline ladder into recorder
// settings. Returns nil when no override is configured.
func (c *EnforcementConfig) Ladder() []violation.DisciplinaryAction {
	if len(c.DisciplineLadder) == 0 {
		return nil
	}
	out := make([]violation.DisciplinaryAction, len(c.DisciplineLadder))
	for i, step := range c.DisciplineLadder {
		out[i] = violation.DisciplinaryAction(step)
	}
	return out
}
