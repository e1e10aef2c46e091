package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/config"
	"fleethq/governor/pkg/enforce"
	"fleethq/governor/pkg/policy/repository"
	"fleethq/governor/pkg/telemetry/metrics"
	"fleethq/governor/pkg/violation"
)

// Server hosts the governor HTTP API.
type Server struct {
	config      config.ServerConfig
	coordinator *enforce.Coordinator
	policies    *repository.Repository
	violations  *violation.Recorder
	auditLog    *audit.Log
	metrics     *metrics.Metrics
	logger      *slog.Logger

	httpServer *http.Server
	running    atomic.Bool
}

// New creates the server. Metrics may be nil to disable /metrics.
func New(cfg config.ServerConfig, coordinator *enforce.Coordinator, policies *repository.Repository,
	violations *violation.Recorder, auditLog *audit.Log, m *metrics.Metrics, logger *slog.Logger) (*Server, error) {
	if coordinator == nil || policies == nil || violations == nil || auditLog == nil {
		return nil, fmt.Errorf("server requires coordinator, repository, recorder, and audit log")
	}
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	return &Server{
		config:      cfg,
		coordinator: coordinator,
		policies:    policies,
		violations:  violations,
		auditLog:    auditLog,
		metrics:     m,
		logger:      logger,
	}, nil
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.routes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.config.ListenAddress)
		s.running.Store(true)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.running.Store(false)
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	s.logger.Info("shutting down", "timeout", timeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Handler returns the route table, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /enforce", s.handleEnforce)

	mux.HandleFunc("POST /policies", s.handleCreatePolicy)
	mux.HandleFunc("GET /policies", s.handleListPolicies)
	mux.HandleFunc("GET /policies/{id}", s.handleGetPolicy)
	mux.HandleFunc("PUT /policies/{id}/submit", s.handleSubmitPolicy)
	mux.HandleFunc("PUT /policies/{id}/activate", s.handleActivatePolicy)
	mux.HandleFunc("PUT /policies/{id}/archive", s.handleArchivePolicy)

	mux.HandleFunc("GET /violations", s.handleListViolations)
	mux.HandleFunc("GET /violations/{id}", s.handleGetViolation)
	mux.HandleFunc("PUT /violations/{id}/status", s.handleViolationStatus)

	mux.HandleFunc("GET /audit/verify", s.handleVerifyChain)
	mux.HandleFunc("GET /audit/entries", s.handleAuditEntries)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}
