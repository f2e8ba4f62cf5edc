// Package cascade holds the Iterative Reduction Cascade data model and the
// executor that runs a plan against one artifact.
//
// A Plan is an ordered, immutable list of Strategy rungs produced by a planner.
// Executor.Execute tries each rung in order against the original artifact and
// stops at the first output that is strictly smaller than the source. Every
// step is narrated to a Tracer so callers can replay exactly what happened.
//
// Backend failures are not "no reduction" outcomes: they abort the cascade and
// surface as services.ErrBackendFailed. An exhausted cascade is a legitimate
// Outcome, not an error.
package cascade
