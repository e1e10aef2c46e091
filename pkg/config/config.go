package config

import "time"

// Config is the root configuration document.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Enforcement EnforcementConfig `yaml:"enforcement"`
	Policies    PoliciesConfig    `yaml:"policies"`
	Audit       AuditConfig       `yaml:"audit"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to.
	ListenAddress string `yaml:"listen_address"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig configures the durable store.
type StorageConfig struct {
	// Driver selects the backend: "sqlite" or "memory".
	Driver string `yaml:"driver"`

	// Path is the sqlite database file. Ignored for the memory driver.
	Path string `yaml:"path"`

	// BusyTimeout is the sqlite busy timeout.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// EnforcementConfig configures the coordinator, resolver, and recorder.
type EnforcementConfig struct {
	// Timeout bounds one enforcement call end to end.
	Timeout time.Duration `yaml:"timeout"`

	// SeverityApprovals overrides the severity-to-approval mapping.
	// Keys are severities, values are approval levels.
	SeverityApprovals map[string]string `yaml:"severity_approvals"`

	// DisciplineLadder overrides the repeat-offense escalation sequence.
	DisciplineLadder []string `yaml:"discipline_ladder"`
}

// PoliciesConfig configures the policy seed loader.
type PoliciesConfig struct {
	// SeedDir holds YAML policy documents imported as drafts. Empty
	// disables seeding.
	SeedDir string `yaml:"seed_dir"`

	// Watch re-imports seed documents when the directory changes.
	Watch bool `yaml:"watch"`

	// Debounce coalesces bursts of file events into one reload.
	Debounce time.Duration `yaml:"debounce"`
}

// AuditConfig configures the compliance scheduler.
type AuditConfig struct {
	// VerifySchedule is the cron expression for periodic chain
	// verification. Empty disables the sweep.
	VerifySchedule string `yaml:"verify_schedule"`

	// ReviewSchedule is the cron expression for the policy review sweep.
	// Empty disables the sweep.
	ReviewSchedule string `yaml:"review_schedule"`
}

// TelemetryConfig configures logging and metrics.
type TelemetryConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MetricsEnabled exposes /metrics when true.
	MetricsEnabled bool `yaml:"metrics_enabled"`
}
