package planner

import (
	"context"
	"fmt"
	"log/slog"

	"squish/internal/cascade"
	"squish/internal/config"
	"squish/internal/services"
	"squish/internal/services/llm"
)

const component = "planner"

// Provider fetches a plan for one artifact.
type Provider interface {
	FetchPlan(ctx context.Context, artifactName string, profile cascade.Profile) (cascade.Plan, error)
}

// Validate rejects plans the executor cannot run.
func Validate(plan cascade.Plan) error {
	if len(plan.Cascade) == 0 {
		return services.Wrap(services.ErrPlanInvalid, component, "validate", "invalid or empty cascade plan", nil)
	}
	for i, strategy := range plan.Cascade {
		params := strategy.Parameters
		if q := params.Quality; q != nil && (*q < 0 || *q > 1) {
			return services.Wrap(services.ErrPlanInvalid, component, "validate",
				fmt.Sprintf("strategy %d (%s): quality %v outside [0, 1]", i+1, strategy.Name, *q), nil)
		}
		if s := params.ResolutionScale; s != nil && *s <= 0 {
			return services.Wrap(services.ErrPlanInvalid, component, "validate",
				fmt.Sprintf("strategy %d (%s): resolution_scale %v must be positive", i+1, strategy.Name, *s), nil)
		}
	}
	return nil
}

// NewFromConfig selects a provider according to planner.provider.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	if cfg == nil {
		return NewMockProvider(), nil
	}
	switch cfg.Planner.Provider {
	case config.PlannerMock:
		return NewMockProvider(), nil
	case config.PlannerFile:
		return NewFileProvider(cfg.Planner.PlanFile), nil
	case config.PlannerLLM:
		return newLLMFromConfig(cfg, logger), nil
	case config.PlannerAuto, "":
		if cfg.LLMConfigured() {
			return newLLMFromConfig(cfg, logger), nil
		}
		if logger != nil {
			logger.Info("no llm api key configured; using built-in cascade ladder",
				slog.String("component", component),
			)
		}
		return NewMockProvider(), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, component, "select",
			fmt.Sprintf("unknown planner provider %q", cfg.Planner.Provider), nil)
	}
}

func newLLMFromConfig(cfg *config.Config, logger *slog.Logger) *LLMProvider {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Referer:        cfg.LLM.Referer,
		Title:          cfg.LLM.Title,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewLLMProvider(client, logger)
}
