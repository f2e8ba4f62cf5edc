// Package preflight provides readiness checks for the external tools,
// services, and filesystem paths squish depends on.
//
// `squish preflight` prints every result; `squish run` calls RunAll first and
// refuses to start when a required check fails. Optional checks (the external
// encoders) are reported but never block a run.
package preflight
