package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"squish/internal/cascade"
	"squish/internal/logging"
	"squish/internal/queue"
	"squish/internal/services"
)

const coordinatorComponent = "coordinator"

// PlanProvider supplies the strategy ladder for one artifact.
type PlanProvider interface {
	FetchPlan(ctx context.Context, artifactName string, profile cascade.Profile) (cascade.Plan, error)
}

// Coordinator runs one record from QUEUED to a terminal status.
type Coordinator struct {
	store    *queue.Store
	provider PlanProvider
	executor *cascade.Executor
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// NewCoordinator wires a coordinator over store.
func NewCoordinator(store *queue.Store, provider PlanProvider, executor *cascade.Executor, observer Observer, logger *slog.Logger) *Coordinator {
	if observer == nil {
		observer = observers(nil)
	}
	return &Coordinator{
		store:    store,
		provider: provider,
		executor: executor,
		observer: observer,
		logger:   logging.NewComponentLogger(logger, coordinatorComponent),
		now:      time.Now,
	}
}

// Run processes record id. epoch must be the store epoch observed when the
// run was scheduled; once a Reset advances it, Run stops writing and returns
// queue.ErrDiscarded.
//
// Failures of the plan provider or the backend are not returned: they settle
// the record in ERROR. The returned error only reports that the record could
// not be written at all.
func (c *Coordinator) Run(ctx context.Context, id string, epoch uint64) (queue.Snapshot, error) {
	ctx = services.WithRecordID(ctx, id)
	ctx = services.WithComponent(ctx, coordinatorComponent)
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, c.logger)

	snap, err := c.update(id, epoch, func(rec *queue.Record) error {
		if err := rec.Transition(queue.StatusProcessing, c.now()); err != nil {
			return err
		}
		rec.AppendTrace(cascade.TraceSystem, "Requesting compression plan...", c.now())
		return nil
	})
	if err != nil {
		return snap, err
	}
	logger.Info("record processing started",
		logging.String("artifact", snap.Original.Name),
		logging.String("profile", string(snap.Profile)),
		logging.Int64("original_bytes", snap.Original.Size()),
		logging.String(logging.FieldEventType, "record_start"),
	)

	plan, err := c.provider.FetchPlan(ctx, snap.Original.Name, snap.Profile)
	if err == nil && len(plan.Cascade) == 0 {
		err = services.Wrap(services.ErrPlanInvalid, coordinatorComponent, "fetch plan", "invalid or empty cascade plan", nil)
	}
	if err != nil {
		return c.fail(ctx, logger, id, epoch, err)
	}

	snap, err = c.update(id, epoch, func(rec *queue.Record) error {
		stored := plan.Clone()
		rec.Plan = &stored
		rec.AppendTrace(cascade.TraceSystem, "Initializing Iterative Reduction Cascade (IRC)...", c.now())
		if floor := strings.TrimSpace(plan.QualityFloorInfo); floor != "" {
			rec.AppendTrace(cascade.TraceRationale, "Conceptual quality floor: "+floor, c.now())
		}
		return nil
	})
	if err != nil {
		return snap, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var writeErr error
	tracer := cascade.TracerFunc(func(kind cascade.TraceKind, text string) {
		if writeErr != nil {
			return
		}
		if _, err := c.update(id, epoch, func(rec *queue.Record) error {
			rec.AppendTrace(kind, text, c.now())
			return nil
		}); err != nil {
			writeErr = err
			cancel()
		}
	})

	outcome, execErr := c.executor.Execute(runCtx, snap.Original, plan, tracer)
	if writeErr != nil {
		logger.Debug("record abandoned mid-cascade",
			logging.Error(writeErr),
			logging.Int("attempts_tried", outcome.AttemptsTried),
		)
		return queue.Snapshot{}, writeErr
	}
	if execErr != nil {
		return c.fail(ctx, logger, id, epoch, execErr)
	}
	if !outcome.Success {
		return c.exhausted(logger, id, epoch, outcome)
	}
	return c.complete(logger, id, epoch, outcome)
}

func (c *Coordinator) complete(logger *slog.Logger, id string, epoch uint64, outcome cascade.Outcome) (queue.Snapshot, error) {
	snap, err := c.update(id, epoch, func(rec *queue.Record) error {
		rec.Result = &queue.Result{
			Strategy:     outcome.Strategy.Clone(),
			Output:       outcome.Output,
			AttemptIndex: outcome.AttemptIndex,
			Savings:      cascade.Savings(rec.Original.Size(), outcome.Output.Size()),
		}
		rec.AppendTrace(cascade.TraceSuccess, "Optimal strategy found. Finalizing...", c.now())
		return rec.Transition(queue.StatusComplete, c.now())
	})
	if err != nil {
		return snap, err
	}
	logger.Info("record complete",
		logging.String("strategy", snap.Result.Strategy.Name),
		logging.Int("attempt_index", snap.Result.AttemptIndex),
		logging.Int64("output_bytes", snap.Result.Output.Size()),
		logging.String("savings", fmt.Sprintf("%.1f%%", snap.Result.Savings)),
		logging.Duration("elapsed", snap.Duration()),
		logging.String(logging.FieldEventType, "record_complete"),
	)
	return snap, nil
}

func (c *Coordinator) exhausted(logger *slog.Logger, id string, epoch uint64, outcome cascade.Outcome) (queue.Snapshot, error) {
	snap, err := c.update(id, epoch, func(rec *queue.Record) error {
		rec.AppendTrace(cascade.TraceFailure, "All strategies in the cascade failed to reduce the file size.", c.now())
		return rec.Transition(queue.StatusOptimizationFailed, c.now())
	})
	if err != nil {
		return snap, err
	}
	logger.Info("cascade exhausted without a size reduction",
		logging.Int("attempts_tried", outcome.AttemptsTried),
		logging.Duration("elapsed", snap.Duration()),
		logging.String(logging.FieldEventType, "record_optimization_failed"),
	)
	return snap, nil
}

func (c *Coordinator) fail(ctx context.Context, logger *slog.Logger, id string, epoch uint64, cause error) (queue.Snapshot, error) {
	message := services.FailureMessage(cause)
	snap, err := c.update(id, epoch, func(rec *queue.Record) error {
		rec.Error = message
		rec.AppendTrace(cascade.TraceFailure, "Processing failed: "+message, c.now())
		return rec.Transition(queue.StatusError, c.now())
	})
	if err != nil {
		return snap, err
	}
	attrs := []logging.Attr{
		logging.String("error_kind", string(services.KindOf(cause))),
		logging.Error(cause),
		logging.String(logging.FieldImpact, "record left in ERROR"),
	}
	if errors.Is(cause, context.Canceled) || ctx.Err() != nil {
		logging.WarnWithContext(logger, "record interrupted", "record_interrupted", attrs...)
		return snap, nil
	}
	logging.ErrorWithContext(logger, "record failed", "record_error", attrs...)
	return snap, nil
}

func (c *Coordinator) update(id string, epoch uint64, fn func(*queue.Record) error) (queue.Snapshot, error) {
	snap, err := c.store.Update(id, epoch, fn)
	if err != nil {
		return snap, err
	}
	c.observer.RecordUpdated(snap)
	return snap, nil
}
