// Package telemetry groups the observability subpackages.
//
//   - logging: structured logging via log/slog
//   - metrics: Prometheus metrics for enforcement, violations, and
//     audit chain health
package telemetry
