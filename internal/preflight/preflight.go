package preflight

import (
	"context"

	"squish/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Blocking reports whether the result should stop a run.
func (r Result) Blocking() bool {
	return !r.Passed && !r.Optional
}

// RunAll executes all applicable preflight checks for the given config.
// The LLM check only runs when the planner would actually call it.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.StateDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	results = append(results, CheckEncoders(cfg)...)

	switch cfg.Planner.Provider {
	case config.PlannerFile:
		results = append(results, CheckPlanFile(cfg.Planner.PlanFile))
	case config.PlannerLLM:
		results = append(results, CheckLLM(ctx, "Compression strategist LLM", cfg.LLM))
	case config.PlannerAuto:
		if cfg.LLMConfigured() {
			results = append(results, CheckLLM(ctx, "Compression strategist LLM", cfg.LLM))
		}
	}
	return results
}

// Failed returns the blocking failures in results.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Blocking() {
			failed = append(failed, r)
		}
	}
	return failed
}
