package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/violation"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != DefaultStoragePath {
		t.Errorf("storage defaults: %+v", cfg.Storage)
	}
	if cfg.Enforcement.Timeout != DefaultEnforcementTimeout {
		t.Errorf("enforcement timeout %v", cfg.Enforcement.Timeout)
	}
	if cfg.Telemetry.LogLevel != "info" || cfg.Telemetry.LogFormat != "json" {
		t.Errorf("telemetry defaults: %+v", cfg.Telemetry)
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  shutdown_timeout: 5s
storage:
  driver: memory
enforcement:
  timeout: 2s
  severity_approvals:
    critical: executive
    minor: supervisor
  discipline_ladder: [written_warning, suspension, termination]
policies:
  seed_dir: /etc/governor/policies
  watch: true
telemetry:
  log_level: debug
  log_format: text
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("listen address %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("shutdown timeout %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("driver %q", cfg.Storage.Driver)
	}
	if !cfg.Policies.Watch || cfg.Policies.SeedDir != "/etc/governor/policies" {
		t.Errorf("policies: %+v", cfg.Policies)
	}

	approvals := cfg.Enforcement.ResolverSeverityApprovals()
	if approvals[policy.SeverityMinor] != policy.ApprovalSupervisor {
		t.Errorf("minor approval %v", approvals[policy.SeverityMinor])
	}
	ladder := cfg.Enforcement.Ladder()
	if len(ladder) != 3 || ladder[0] != violation.ActionWrittenWarning {
		t.Errorf("ladder %v", ladder)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GOVERNOR_SERVER_LISTEN_ADDRESS", "127.0.0.1:7070")
	t.Setenv("GOVERNOR_STORAGE_DRIVER", "memory")
	t.Setenv("GOVERNOR_ENFORCEMENT_TIMEOUT", "750ms")
	t.Setenv("GOVERNOR_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:7070" {
		t.Errorf("env listen address not applied: %q", cfg.Server.ListenAddress)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("env driver not applied: %q", cfg.Storage.Driver)
	}
	if cfg.Enforcement.Timeout != 750*time.Millisecond {
		t.Errorf("env timeout not applied: %v", cfg.Enforcement.Timeout)
	}
	if cfg.Telemetry.LogLevel != "warn" {
		t.Errorf("env log level not applied: %q", cfg.Telemetry.LogLevel)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad driver", "storage:\n  driver: postgres\n"},
		{"bad severity", "enforcement:\n  severity_approvals:\n    fatal: executive\n"},
		{"bad approval", "enforcement:\n  severity_approvals:\n    minor: overlord\n"},
		{"bad ladder", "enforcement:\n  discipline_ladder: [demotion]\n"},
		{"bad log level", "telemetry:\n  log_level: loud\n"},
		{"bad log format", "telemetry:\n  log_format: xml\n"},
		{"not yaml", "{{{\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("invalid configuration accepted")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Error("missing file accepted")
	}
}
