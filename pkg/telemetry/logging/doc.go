// Package logging builds the process-wide structured logger.
//
// All components log through log/slog with a shared handler configured
// here. Components attach their identity with
// slog.Default().With("component", ...).
package logging
