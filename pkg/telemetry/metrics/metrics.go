package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "governor"

// Metrics tracks enforcement, violation, and audit metrics.
//
// Metrics:
//   - governor_enforcement_total: Enforcement decisions by operation type and outcome
//   - governor_enforcement_duration_seconds: End-to-end enforcement duration
//   - governor_policy_evaluations_total: Per-policy condition evaluations by match result
//   - governor_violations_total: Recorded violations by policy code and severity
//   - governor_violation_record_failures_total: Violation inserts that failed
//   - governor_audit_appends_total: Audit entries appended by event type
//   - governor_audit_append_failures_total: Audit appends that failed
//   - governor_audit_chain_verifications_total: Chain verification runs by result
//   - governor_audit_chain_intact: 1 while the last verification found the chain intact
//   - governor_policies_active: Currently active policies
//   - governor_policies_review_overdue: Active policies past their review date
type Metrics struct {
	registry *prometheus.Registry

	enforcementTotal    *prometheus.CounterVec
	enforcementDuration *prometheus.HistogramVec
	evaluationsTotal    *prometheus.CounterVec

	violationsTotal         *prometheus.CounterVec
	violationRecordFailures prometheus.Counter

	auditAppendsTotal   *prometheus.CounterVec
	auditAppendFailures prometheus.Counter
	chainVerifications  *prometheus.CounterVec
	chainIntact         prometheus.Gauge

	policiesActive  prometheus.Gauge
	policiesOverdue prometheus.Gauge
}

// New creates and registers all metrics on a fresh private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		enforcementTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enforcement_total",
				Help:      "Total enforcement decisions",
			},
			[]string{"operation_type", "outcome"},
		),

		enforcementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "enforcement_duration_seconds",
				Help:      "End-to-end enforcement duration in seconds",
				// Evaluation is in-memory; the tail is audit and violation
				// writes.
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"operation_type"},
		),

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_evaluations_total",
				Help:      "Per-policy condition evaluations",
			},
			[]string{"policy_code", "matched"},
		),

		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violations_total",
				Help:      "Recorded violations",
			},
			[]string{"policy_code", "severity"},
		),

		violationRecordFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "violation_record_failures_total",
				Help:      "Violation inserts that failed",
			},
		),

		auditAppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_appends_total",
				Help:      "Audit entries appended",
			},
			[]string{"event_type"},
		),

		auditAppendFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_append_failures_total",
				Help:      "Audit appends that failed",
			},
		),

		chainVerifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_chain_verifications_total",
				Help:      "Audit chain verification runs",
			},
			[]string{"result"},
		),

		chainIntact: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "audit_chain_intact",
				Help:      "1 while the last chain verification found no tampering",
			},
		),

		policiesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "policies_active",
				Help:      "Currently active policies",
			},
		),

		policiesOverdue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "policies_review_overdue",
				Help:      "Active policies past their scheduled review date",
			},
		),
	}

	m.registry.MustRegister(
		m.enforcementTotal,
		m.enforcementDuration,
		m.evaluationsTotal,
		m.violationsTotal,
		m.violationRecordFailures,
		m.auditAppendsTotal,
		m.auditAppendFailures,
		m.chainVerifications,
		m.chainIntact,
		m.policiesActive,
		m.policiesOverdue,
	)

	// Until the first verification runs, report the chain as intact.
	m.chainIntact.Set(1)

	return m
}

// Handler returns the HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEnforcement records one enforcement decision.
// Outcome is "allow", "block", or "approval_required".
func (m *Metrics) RecordEnforcement(operationType, outcome string, duration time.Duration) {
	m.enforcementTotal.WithLabelValues(operationType, outcome).Inc()
	m.enforcementDuration.WithLabelValues(operationType).Observe(duration.Seconds())
}

// RecordEvaluation records one per-policy condition evaluation.
func (m *Metrics) RecordEvaluation(policyCode string, matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	m.evaluationsTotal.WithLabelValues(policyCode, label).Inc()
}

// RecordViolation records one persisted violation.
func (m *Metrics) RecordViolation(policyCode, severity string) {
	m.violationsTotal.WithLabelValues(policyCode, severity).Inc()
}

// RecordViolationFailure records a violation insert that failed.
func (m *Metrics) RecordViolationFailure() {
	m.violationRecordFailures.Inc()
}

// RecordAuditAppend records one appended audit entry.
func (m *Metrics) RecordAuditAppend(eventType string) {
	m.auditAppendsTotal.WithLabelValues(eventType).Inc()
}

// RecordAuditFailure records a failed audit append.
func (m *Metrics) RecordAuditFailure() {
	m.auditAppendFailures.Inc()
}

// RecordChainVerification records a verification run and updates the
// intact gauge.
func (m *Metrics) RecordChainVerification(valid bool) {
	if valid {
		m.chainVerifications.WithLabelValues("intact").Inc()
		m.chainIntact.Set(1)
		return
	}
	m.chainVerifications.WithLabelValues("tampered").Inc()
	m.chainIntact.Set(0)
}

// SetActivePolicies updates the active-policy gauge.
func (m *Metrics) SetActivePolicies(n int) {
	m.policiesActive.Set(float64(n))
}

// SetOverdueReviews updates the overdue-review gauge.
func (m *Metrics) SetOverdueReviews(n int) {
	m.policiesOverdue.Set(float64(n))
}
