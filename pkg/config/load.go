package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults and
// GOVERNOR_* environment overrides, and validates the result. An empty
// path loads pure defaults plus overrides.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read configuration file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse configuration file %q: %w", path, err)
		}
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies GOVERNOR_SECTION_FIELD environment
// variables over the loaded configuration.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				*dst = d
			}
		}
	}

	setString("GOVERNOR_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	setDuration("GOVERNOR_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	setDuration("GOVERNOR_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	setDuration("GOVERNOR_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	setString("GOVERNOR_STORAGE_DRIVER", &cfg.Storage.Driver)
	setString("GOVERNOR_STORAGE_PATH", &cfg.Storage.Path)
	setDuration("GOVERNOR_STORAGE_BUSY_TIMEOUT", &cfg.Storage.BusyTimeout)

	setDuration("GOVERNOR_ENFORCEMENT_TIMEOUT", &cfg.Enforcement.Timeout)

	setString("GOVERNOR_POLICIES_SEED_DIR", &cfg.Policies.SeedDir)

	setString("GOVERNOR_AUDIT_VERIFY_SCHEDULE", &cfg.Audit.VerifySchedule)
	setString("GOVERNOR_AUDIT_REVIEW_SCHEDULE", &cfg.Audit.ReviewSchedule)

	setString("GOVERNOR_LOG_LEVEL", &cfg.Telemetry.LogLevel)
	setString("GOVERNOR_LOG_FORMAT", &cfg.Telemetry.LogFormat)
}
