package planner

import (
	"context"
	"log/slog"
	"strings"

	"squish/internal/cascade"
	"squish/internal/logging"
	"squish/internal/services"
	"squish/internal/services/llm"
)

// Completer is the subset of the llm client the planner needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, schema *llm.Schema) (string, error)
}

// LLMProvider asks a chat model for a plan.
type LLMProvider struct {
	client Completer
	logger *slog.Logger
}

// NewLLMProvider constructs a provider backed by client.
func NewLLMProvider(client Completer, logger *slog.Logger) *LLMProvider {
	return &LLMProvider{client: client, logger: logging.NewComponentLogger(logger, component)}
}

// FetchPlan implements Provider.
func (p *LLMProvider) FetchPlan(ctx context.Context, artifactName string, profile cascade.Profile) (cascade.Plan, error) {
	if p.client == nil {
		return cascade.Plan{}, services.Wrap(services.ErrConfiguration, component, "fetch plan", "llm client not configured", nil)
	}
	name := strings.TrimSpace(artifactName)
	logger := logging.WithContext(ctx, p.logger)

	content, err := p.client.CompleteJSON(ctx, systemPrompt, buildUserPrompt(name, profile), &llm.Schema{
		Name:   "iterative_reduction_plan",
		Schema: planSchema(),
	})
	if err != nil {
		logging.WarnWithContext(logger, "plan request failed", "plan_fetch_failed",
			logging.String("artifact", name),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm.api_key, llm.model, and network access"),
			logging.String(logging.FieldImpact, "record will end in ERROR"),
		)
		return cascade.Plan{}, services.Wrap(services.ErrPlanFetchFailed, component, "fetch plan", "failed to get a plan from the strategist", err)
	}

	var plan cascade.Plan
	if err := llm.DecodeLLMJSON(content, &plan); err != nil {
		return cascade.Plan{}, services.Wrap(services.ErrPlanInvalid, component, "decode plan", "strategist returned malformed JSON", err)
	}
	if err := Validate(plan); err != nil {
		return cascade.Plan{}, err
	}
	logger.Info("plan received",
		logging.String("artifact", name),
		logging.String("profile", string(profile)),
		logging.Int("strategies", len(plan.Cascade)),
		logging.String(logging.FieldEventType, "plan_received"),
	)
	return plan, nil
}
