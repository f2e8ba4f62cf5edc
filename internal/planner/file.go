package planner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"squish/internal/cascade"
	"squish/internal/services"
)

// FileProvider reads a fixed plan from a YAML or JSON document. The file is
// re-read on every call so edits apply to the next record.
type FileProvider struct {
	path string
}

// NewFileProvider constructs a provider for path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: strings.TrimSpace(path)}
}

// FetchPlan implements Provider.
func (p *FileProvider) FetchPlan(ctx context.Context, _ string, _ cascade.Profile) (cascade.Plan, error) {
	if err := ctx.Err(); err != nil {
		return cascade.Plan{}, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return cascade.Plan{}, services.Wrap(services.ErrPlanFetchFailed, component, "read plan file", p.path, err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return cascade.Plan{}, err
	}
	return plan, nil
}

// ParsePlan decodes a YAML or JSON plan document and validates it.
func ParsePlan(data []byte) (cascade.Plan, error) {
	var plan cascade.Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return cascade.Plan{}, services.Wrap(services.ErrPlanInvalid, component, "parse plan", "", err)
	}
	if err := Validate(plan); err != nil {
		return cascade.Plan{}, err
	}
	return plan, nil
}

// MarshalPlan renders plan as YAML, the format FileProvider reads.
func MarshalPlan(plan cascade.Plan) ([]byte, error) {
	out, err := yaml.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}
	return out, nil
}
