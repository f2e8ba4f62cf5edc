// Package services defines shared utilities consumed by the cascade engine,
// the workflow coordinator, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, attempt numbers, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let the coordinator
//     turn any failure into the ERROR terminal state with a readable message.
//
// Use these helpers when wiring new integrations so failure classification and
// observability stay uniform across the pipeline.
package services
