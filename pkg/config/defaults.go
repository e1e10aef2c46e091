package config

import "time"

// Default values applied to unset fields.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultStorageDriver = "sqlite"
	DefaultStoragePath   = "governor.db"
	DefaultBusyTimeout   = 5 * time.Second

	DefaultEnforcementTimeout = 5 * time.Second

	DefaultSeedDebounce = 500 * time.Millisecond

	DefaultVerifySchedule = "@every 1h"
	DefaultReviewSchedule = "@daily"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ApplyDefaults fills unset fields with default values.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DefaultStorageDriver
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = DefaultBusyTimeout
	}

	if cfg.Enforcement.Timeout == 0 {
		cfg.Enforcement.Timeout = DefaultEnforcementTimeout
	}

	if cfg.Policies.Debounce == 0 {
		cfg.Policies.Debounce = DefaultSeedDebounce
	}

	if cfg.Audit.VerifySchedule == "" {
		cfg.Audit.VerifySchedule = DefaultVerifySchedule
	}
	if cfg.Audit.ReviewSchedule == "" {
		cfg.Audit.ReviewSchedule = DefaultReviewSchedule
	}

	if cfg.Telemetry.LogLevel == "" {
		cfg.Telemetry.LogLevel = DefaultLogLevel
	}
	if cfg.Telemetry.LogFormat == "" {
		cfg.Telemetry.LogFormat = DefaultLogFormat
	}
}
