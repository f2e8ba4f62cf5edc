package main

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"squish/internal/cascade"
	"squish/internal/config"
	"squish/internal/planner"
)

func TestPlanCommandText(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan", "--profile", "archive", "/photos/beach.jpg"}, env.configPath)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	requireContains(t, out, "== beach.jpg (Archive Quality) ==")
	requireContains(t, out, "SSIM > 0.8")
	requireContains(t, out, "Photograph")
	requireContains(t, out, "Noisy")
	requireContains(t, out, "Small JPEG")
	requireContains(t, out, `{"format":"jpeg","quality":0.4,"resolution_scale":0.5}`)
}

func TestPlanCommandYAMLRoundTrips(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"plan", "--format", "yaml", "beach.jpg"}, env.configPath)
	if err != nil {
		t.Fatalf("plan --format yaml: %v", err)
	}
	plan, err := planner.ParsePlan([]byte(out))
	if err != nil {
		t.Fatalf("parse emitted plan: %v\n%s", err, out)
	}
	if len(plan.Cascade) != 2 || plan.Cascade[1].Name != "Smaller JPEG" {
		t.Fatalf("unexpected plan %+v", plan.Cascade)
	}
}

func TestPlanCommandJSONWithBuiltInLadder(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Planner.Provider = config.PlannerMock
	env.cfg.Planner.PlanFile = ""
	configPath := filepath.Join(env.baseDir, "mock.toml")
	writeTestConfig(t, configPath, env.cfg)

	out, _, err := runCLI(t, []string{"plan", "-f", "json", "diagram.png"}, configPath)
	if err != nil {
		t.Fatalf("plan -f json: %v", err)
	}
	var plan cascade.Plan
	if err := json.Unmarshal([]byte(out), &plan); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(plan.Cascade) != len(planner.DefaultLadder().Cascade) {
		t.Fatalf("expected the built-in ladder, got %d strategies", len(plan.Cascade))
	}
}

func TestPlanCommandRejectsUnknownFormat(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"plan", "--format", "xml", "beach.jpg"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestPlanSummaryLinesTitleCase(t *testing.T) {
	lines := planSummaryLines(cascade.Plan{
		Summary: cascade.Summary{FileType: "PNG screenshot", Complexity: "low"},
	})
	joined := strings.Join(lines, "\n")
	if strings.Contains(joined, "Quality floor") {
		t.Fatalf("expected no quality floor line, got %q", joined)
	}
	requireContains(t, joined, "PNG Screenshot")
	requireContains(t, joined, "Low")
	requireContains(t, joined, "Visual focus:")
}
