// Package compliance runs background sweeps over the audit chain and
// the active policy set.
//
// Two cron-scheduled jobs: chain verification, which recomputes the
// full hash chain and raises a tamper alert when it diverges, and the
// review sweep, which flags active policies past their next review
// date. Tamper detection is a monitoring concern; it never halts
// enforcement.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"fleethq/governor/pkg/audit"
	"fleethq/governor/pkg/policy"
	"fleethq/governor/pkg/telemetry/metrics"
)

// ChainVerifier verifies a range of the audit chain.
type ChainVerifier interface {
	VerifyChain(ctx context.Context, fromSeq, toSeq int64) (*audit.VerificationResult, error)
}

// Appender appends compliance alerts to the audit chain.
type Appender interface {
	Append(ctx context.Context, event audit.Event) (*audit.Entry, error)
}

// PolicyReviewer reports active policies past their review date.
type PolicyReviewer interface {
	ActivePastReview(asOf time.Time) []*policy.Policy
}

// Config holds the sweep schedules. Either schedule may be empty to
// disable that sweep.
type Config struct {
	// VerifySchedule is the cron expression for chain verification.
	VerifySchedule string

	// ReviewSchedule is the cron expression for the policy review sweep.
	ReviewSchedule string
}

// Scheduler owns the cron runner for compliance sweeps.
type Scheduler struct {
	verifier ChainVerifier
	appender Appender
	reviewer PolicyReviewer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	config   Config

	cron *cron.Cron
	now  func() time.Time
}

// New creates a compliance scheduler. The reviewer may be nil when the
// review sweep is disabled.
func New(verifier ChainVerifier, appender Appender, reviewer PolicyReviewer,
	m *metrics.Metrics, logger *slog.Logger, config Config) (*Scheduler, error) {
	if verifier == nil || appender == nil {
		return nil, fmt.Errorf("compliance scheduler requires a verifier and an appender")
	}
	if logger == nil {
		logger = slog.Default().With("component", "audit.compliance")
	}
	return &Scheduler{
		verifier: verifier,
		appender: appender,
		reviewer: reviewer,
		metrics:  m,
		logger:   logger,
		config:   config,
		cron:     cron.New(),
		now:      time.Now,
	}, nil
}

// Start registers the sweeps and starts the cron runner.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.VerifySchedule != "" {
		if _, err := s.cron.AddFunc(s.config.VerifySchedule, func() { s.RunVerification(ctx) }); err != nil {
			return fmt.Errorf("invalid verify schedule %q: %w", s.config.VerifySchedule, err)
		}
	}
	if s.config.ReviewSchedule != "" && s.reviewer != nil {
		if _, err := s.cron.AddFunc(s.config.ReviewSchedule, func() { s.RunReviewSweep(ctx) }); err != nil {
			return fmt.Errorf("invalid review schedule %q: %w", s.config.ReviewSchedule, err)
		}
	}
	s.cron.Start()
	s.logger.Info("compliance scheduler started",
		"verify_schedule", s.config.VerifySchedule,
		"review_schedule", s.config.ReviewSchedule,
	)
	return nil
}

// Stop stops the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("compliance scheduler stopped")
}

// RunVerification verifies the whole chain once and raises a tamper
// alert when it diverges.
func (s *Scheduler) RunVerification(ctx context.Context) *audit.VerificationResult {
	result, err := s.verifier.VerifyChain(ctx, 1, 0)
	if err != nil {
		s.logger.Error("chain verification failed", "error", err)
		return nil
	}
	if s.metrics != nil {
		s.metrics.RecordChainVerification(result.Valid)
	}
	if result.Valid {
		s.logger.Debug("chain verification passed",
			"entries_checked", result.EntriesChecked,
		)
		return result
	}

	s.logger.Error("audit chain tampering detected",
		"first_invalid_sequence", result.FirstInvalidSequence,
		"reason", result.Reason,
		"entries_checked", result.EntriesChecked,
	)
	s.raiseAlert(ctx, map[string]any{
		"alert":                "chain_tamper_detected",
		"firstInvalidSequence": result.FirstInvalidSequence,
		"reason":               result.Reason,
		"fromSequence":         result.FromSequence,
		"toSequence":           result.ToSequence,
	})
	return result
}

// RunReviewSweep flags active policies whose next review date has
// passed.
func (s *Scheduler) RunReviewSweep(ctx context.Context) []*policy.Policy {
	overdue := s.reviewer.ActivePastReview(s.now())
	if s.metrics != nil {
		s.metrics.SetOverdueReviews(len(overdue))
	}
	if len(overdue) == 0 {
		s.logger.Debug("policy review sweep found nothing overdue")
		return nil
	}

	ids := make([]string, len(overdue))
	for i, p := range overdue {
		ids[i] = p.ID
		s.logger.Warn("policy past review date",
			"policy_id", p.ID,
			"policy_code", p.Code,
			"next_review_date", p.NextReviewDate,
		)
	}
	s.raiseAlert(ctx, map[string]any{
		"alert":     "policy_review_overdue",
		"policyIds": ids,
	})
	return overdue
}

func (s *Scheduler) raiseAlert(ctx context.Context, payload map[string]any) {
	_, err := s.appender.Append(ctx, audit.Event{
		ActorID: "system",
		Type:    audit.EventTypeComplianceAlert,
		Payload: payload,
	})
	if err != nil {
		s.logger.Error("compliance alert append failed", "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordAuditAppend(audit.EventTypeComplianceAlert)
	}
}
