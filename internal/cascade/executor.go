package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"squish/internal/logging"
	"squish/internal/services"
)

const component = "cascade"

// Options are the concrete backend parameters derived from a strategy.
type Options struct {
	TargetFormat string
	Quality      *float64
	MaxDimension int
}

// Backend performs the actual image transformation. Implementations must
// treat each call as a pure function of its inputs.
type Backend interface {
	Compress(ctx context.Context, artifact Artifact, opts Options) (Artifact, error)
	Dimensions(ctx context.Context, artifact Artifact) (width, height int, err error)
}

// Outcome is the result of running a cascade. Success is false when every
// strategy was tried without a strict reduction.
type Outcome struct {
	Success       bool
	Strategy      Strategy
	AttemptIndex  int
	Output        Artifact
	AttemptsTried int
}

// Executor runs plans against a backend.
type Executor struct {
	backend Backend
	logger  *slog.Logger
}

// NewExecutor constructs an executor.
func NewExecutor(backend Backend, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{backend: backend, logger: logger.With(logging.String(logging.FieldComponent, component))}
}

// Execute tries each strategy of plan against original, in order, and stops at
// the first output strictly smaller than original.
func (e *Executor) Execute(ctx context.Context, original Artifact, plan Plan, tracer Tracer) (Outcome, error) {
	if tracer == nil {
		tracer = discardTracer{}
	}
	total := len(plan.Cascade)
	if total == 0 {
		return Outcome{}, services.Wrap(services.ErrPlanInvalid, component, "execute", "cascade has no strategies", nil)
	}
	if e.backend == nil {
		return Outcome{}, services.Wrap(services.ErrConfiguration, component, "execute", "compression backend not configured", nil)
	}

	originalSize := original.Size()
	for i, strategy := range plan.Cascade {
		attempt := i + 1
		attemptCtx := services.WithAttempt(ctx, attempt)
		logger := logging.WithContext(attemptCtx, e.logger)

		tracer.Trace(TraceStrategyStart, fmt.Sprintf("[ATTEMPT %d/%d] Trying: %s", attempt, total, strategy.Name))
		tracer.Trace(TraceRationale, strategy.Rationale)
		tracer.Trace(TraceCommand, fmt.Sprintf("%s %s", strategy.Tool, strategy.Parameters.String()))

		opts, err := e.resolveOptions(attemptCtx, original, strategy, tracer)
		if err != nil {
			return Outcome{AttemptsTried: attempt}, err
		}

		output, err := e.backend.Compress(attemptCtx, original, opts)
		if err != nil {
			logger.Warn("compression attempt failed",
				logging.String("strategy", strategy.Name),
				logging.Error(err),
				logging.String(logging.FieldEventType, "attempt_error"),
			)
			return Outcome{AttemptsTried: attempt}, services.Wrap(
				services.ErrBackendFailed,
				component,
				"compress",
				fmt.Sprintf("strategy %q", strategy.Name),
				err,
			)
		}

		if output.Size() < originalSize {
			tracer.Trace(TraceSuccess, fmt.Sprintf(
				"SUCCESS! Output size (%s) is smaller than the original (%s).",
				FormatBytes(output.Size()),
				FormatBytes(originalSize),
			))
			if output.Name == "" || output.Name == original.Name {
				output.Name = OptimizedName(original.Name, strategy)
			}
			logger.Info("compression attempt reduced size",
				logging.String("strategy", strategy.Name),
				logging.Int64("original_bytes", originalSize),
				logging.Int64("output_bytes", output.Size()),
				logging.String(logging.FieldEventType, "attempt_success"),
			)
			return Outcome{
				Success:       true,
				Strategy:      strategy,
				AttemptIndex:  attempt,
				Output:        output,
				AttemptsTried: attempt,
			}, nil
		}

		tracer.Trace(TraceFailure, "FAILED. Output is not smaller. Moving on to the next attempt...")
		logger.Debug("compression attempt did not reduce size",
			logging.String("strategy", strategy.Name),
			logging.Int64("original_bytes", originalSize),
			logging.Int64("output_bytes", output.Size()),
		)
	}

	return Outcome{AttemptsTried: total}, nil
}

func (e *Executor) resolveOptions(ctx context.Context, original Artifact, strategy Strategy, tracer Tracer) (Options, error) {
	params := strategy.Parameters
	opts := Options{TargetFormat: params.Format}
	if params.Quality != nil {
		q := *params.Quality
		opts.Quality = &q
	}
	if params.ResolutionScale == nil || *params.ResolutionScale >= 1.0 {
		return opts, nil
	}

	scale := *params.ResolutionScale
	width, height, err := e.backend.Dimensions(ctx, original)
	if err != nil {
		return Options{}, services.Wrap(services.ErrBackendFailed, component, "dimensions", "read original dimensions", err)
	}
	opts.MaxDimension = MaxDimension(width, height, scale)
	tracer.Trace(TraceSystem, fmt.Sprintf(
		"Resolution reduced to %s%% (%dpx max)...",
		formatPercent(scale*100),
		opts.MaxDimension,
	))
	return opts, nil
}

// MaxDimension returns floor(max(width, height) * scale), never less than 1
// so a scaled strategy always resizes to a real bound.
func MaxDimension(width, height int, scale float64) int {
	return max(1, int(math.Floor(float64(max(width, height))*scale)))
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%g", math.Round(value*100)/100)
}
