package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"squish/internal/config"
	"squish/internal/testsupport"
)

const twoStepPlan = `quality_floor_info: "SSIM > 0.8"
planning_summary:
  fileType: photograph
  complexity: high
  visualFocus: detected
  textureProfile: noisy
cascade:
  - strategy_name: Small JPEG
    tool: cjpeg
    parameters:
      format: jpeg
      quality: 0.4
      resolution_scale: 0.5
    rationale: Trade detail for size.
  - strategy_name: Smaller JPEG
    tool: cjpeg
    parameters:
      format: jpeg
      quality: 0.2
      resolution_scale: 0.25
    rationale: Last resort.
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	planPath   string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("SQUISH_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	planPath := filepath.Join(base, "plan.yaml")
	if err := os.WriteFile(planPath, []byte(twoStepPlan), 0o644); err != nil {
		t.Fatalf("write plan: %v", err)
	}

	cfg := testsupport.NewConfig(t, testsupport.WithPlanFile(planPath))
	cfg.Logging.Level = "error"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		planPath:   planPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func writeInput(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
