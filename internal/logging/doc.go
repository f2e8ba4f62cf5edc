// Package logging assembles structured slog loggers and formatting helpers used
// across squish.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag log lines with record IDs, cascade attempts,
// and correlation IDs set through internal/services. NewNop is available for
// tests and wiring code that cannot fail.
package logging
