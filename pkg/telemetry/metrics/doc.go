// Package metrics registers and records Prometheus metrics for the
// enforcement pipeline, violation recording, and audit chain health.
//
// Metrics live on a private registry so tests can create isolated
// instances; the HTTP handler exposes that registry only.
package metrics
