package main

import (
	"database/sql"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/audit/compliance"
	"fleethq/governor/pkg/config"
	"fleethq/governor/pkg/enforce"
	"fleethq/governor/pkg/policy/repository"
	"fleethq/governor/pkg/policy/resolver"
	"fleethq/governor/pkg/policy/source"
	"fleethq/governor/pkg/server"
	"fleethq/governor/pkg/telemetry/logging"
	"fleethq/governor/pkg/telemetry/metrics"
	"fleethq/governor/pkg/violation"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the governor server",
	Long: `Start the governor enforcement server with the specified configuration.

Examples:
  # Start with defaults (sqlite store, localhost)
  governor run

  # Start with a custom config
  governor run --config /etc/governor/config.yaml

  # Validate config without starting
  governor run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.LogLevel = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.LogLevel = "debug"
	}

	logger, err := logging.Setup(logging.Config{
		Level:  cfg.Telemetry.LogLevel,
		Format: cfg.Telemetry.LogFormat,
	})
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage backends share one database handle for the sqlite driver.
	var (
		policyStore      repository.Store
		violationStorage violation.Storage
		auditStorage     audit.Storage
	)
	switch cfg.Storage.Driver {
	case "sqlite":
		db, err := openDatabase(cfg.Storage)
		if err != nil {
			return err
		}
		defer db.Close()
		if policyStore, err = repository.NewSQLiteStore(db); err != nil {
			return err
		}
		if violationStorage, err = violation.NewSQLiteStorage(db); err != nil {
			return err
		}
		if auditStorage, err = audit.NewSQLiteStorage(db); err != nil {
			return err
		}
		logger.Info("sqlite storage opened", "path", cfg.Storage.Path)
	case "memory":
		policyStore = repository.NewMemoryStore()
		violationStorage = violation.NewMemoryStorage()
		auditStorage = audit.NewMemoryStorage()
		logger.Warn("using in-memory storage, nothing will survive a restart")
	}

	repo, err := repository.New(ctx, policyStore, logger.With("component", "policy.repository"))
	if err != nil {
		return err
	}
	defer repo.Close()

	recorderConfig := violation.DefaultConfig()
	if ladder := cfg.Enforcement.Ladder(); ladder != nil {
		recorderConfig.Ladder = ladder
	}
	recorder, err := violation.New(violationStorage, recorderConfig, logger.With("component", "violation.recorder"))
	if err != nil {
		return err
	}

	auditLog := audit.NewLog(auditStorage, logger.With("component", "audit.log"))
	defer auditLog.Close()

	resolverConfig := &resolver.Config{
		SeverityApprovals: cfg.Enforcement.ResolverSeverityApprovals(),
	}
	modeResolver := resolver.New(resolverConfig, logger.With("component", "policy.resolver"))

	var m *metrics.Metrics
	if cfg.Telemetry.MetricsEnabled {
		m = metrics.New()
	}

	coordinator, err := enforce.New(repo, modeResolver, recorder, auditLog, m,
		logger.With("component", "enforce.coordinator"),
		enforce.Config{Timeout: cfg.Enforcement.Timeout})
	if err != nil {
		return err
	}

	if cfg.Policies.SeedDir != "" {
		loader := source.NewLoader(repo, logger.With("component", "policy.source"))
		n, err := loader.LoadDir(ctx, cfg.Policies.SeedDir)
		if err != nil {
			return err
		}
		logger.Info("policy seeds imported", "dir", cfg.Policies.SeedDir, "drafts", n)

		if cfg.Policies.Watch {
			watcher, err := source.NewWatcher(loader, cfg.Policies.SeedDir, cfg.Policies.Debounce,
				logger.With("component", "policy.source.watcher"))
			if err != nil {
				return err
			}
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					logger.Error("seed watcher stopped", "error", err)
				}
			}()
		}
	}

	scheduler, err := compliance.New(auditLog, auditLog, repo, m,
		logger.With("component", "audit.compliance"),
		compliance.Config{
			VerifySchedule: cfg.Audit.VerifySchedule,
			ReviewSchedule: cfg.Audit.ReviewSchedule,
		})
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	srv, err := server.New(cfg.Server, coordinator, repo, recorder, auditLog, m,
		logger.With("component", "server"))
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// openDatabase opens the shared sqlite handle. WAL keeps readers off
// the writers' lock; immediate transactions make the offense-count
// read-then-insert serialize instead of deadlocking.
func openDatabase(cfg config.StorageConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}
	return db, nil
}
