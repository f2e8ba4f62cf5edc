package workflow_test

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"squish/internal/cascade"
	"squish/internal/queue"
	"squish/internal/services"
	"squish/internal/testsupport"
	"squish/internal/workflow"
)

func TestRunAllStopsAtFirstReduction(t *testing.T) {
	backend := &testsupport.ScriptedBackend{Sizes: []int{1000, 400, 100}}
	plan := testsupport.PlanOf(cascade.Parameters{}, cascade.Parameters{Format: "webp"}, cascade.Parameters{Format: "avif"})
	h := newHarness(t, backend, plan)
	id := h.enqueue(t, "photo.png", 1000)

	h.runAll(t)

	snap := h.snapshot(t, id)
	if snap.Status != queue.StatusComplete {
		t.Fatalf("expected COMPLETE, got %s (%s)", snap.Status, snap.Error)
	}
	if snap.Result.AttemptIndex != 2 || snap.Result.Strategy.Name != "step-2" {
		t.Fatalf("unexpected result %+v", snap.Result)
	}
	if backend.Calls() != 2 {
		t.Fatalf("strategies after the accepted one must not run, got %d calls", backend.Calls())
	}
	if snap.Result.Output.Name != "photo-optimized.webp" {
		t.Fatalf("unexpected output name %q", snap.Result.Output.Name)
	}
}

func TestRunAllExhaustedEndsOptimizationFailed(t *testing.T) {
	backend := &testsupport.ScriptedBackend{Sizes: []int{1200, 1000, 1001}}
	plan := testsupport.PlanOf(cascade.Parameters{}, cascade.Parameters{}, cascade.Parameters{})
	h := newHarness(t, backend, plan)
	id := h.enqueue(t, "photo.png", 1000)

	h.runAll(t)

	snap := h.snapshot(t, id)
	if snap.Status != queue.StatusOptimizationFailed {
		t.Fatalf("expected OPTIMIZATION_FAILED, got %s", snap.Status)
	}
	if snap.Result != nil || snap.Error != "" {
		t.Fatalf("exhausted record should carry neither result nor error: %+v", snap)
	}
	if snap.Plan == nil || len(snap.Plan.Cascade) != 3 {
		t.Fatal("exhausted record should keep its plan")
	}
	if backend.Calls() != 3 {
		t.Fatalf("expected all 3 strategies to run, got %d", backend.Calls())
	}
	last, _ := snap.LastTrace()
	if last.Kind != cascade.TraceFailure || !strings.Contains(last.Text, "All strategies") {
		t.Fatalf("unexpected closing entry %+v", last)
	}
}

func TestEmptyCascadeEndsInError(t *testing.T) {
	backend := &testsupport.ScriptedBackend{}
	h := newHarness(t, backend, cascade.Plan{QualityFloorInfo: "none"})
	id := h.enqueue(t, "photo.png", 1000)

	h.runAll(t)

	snap := h.snapshot(t, id)
	if snap.Status != queue.StatusError {
		t.Fatalf("expected ERROR, got %s", snap.Status)
	}
	if !strings.Contains(snap.Error, services.ErrPlanInvalid.Error()) {
		t.Fatalf("error should name the invalid plan, got %q", snap.Error)
	}
	if backend.Calls() != 0 {
		t.Fatalf("backend must not run for an empty plan, got %d calls", backend.Calls())
	}
}

func TestPlanFetchFailureEndsInError(t *testing.T) {
	backend := &testsupport.ScriptedBackend{}
	h := newHarness(t, backend, cascade.Plan{})
	h.provider.Err = services.Wrap(services.ErrPlanFetchFailed, "planner", "fetch plan", "failed to get a plan from the strategist", errors.New("http 503"))
	id := h.enqueue(t, "photo.png", 1000)

	h.runAll(t)

	snap := h.snapshot(t, id)
	if snap.Status != queue.StatusError || snap.Plan != nil {
		t.Fatalf("expected ERROR without plan, got %s plan=%v", snap.Status, snap.Plan)
	}
	if !strings.Contains(snap.Error, "http 503") {
		t.Fatalf("error should carry the cause, got %q", snap.Error)
	}
	last, _ := snap.LastTrace()
	if last.Kind != cascade.TraceFailure || last.Text != "Processing failed: "+snap.Error {
		t.Fatalf("unexpected closing entry %+v", last)
	}
}

func TestSavingsMatchSizes(t *testing.T) {
	cases := []struct {
		original int
		output   int
	}{
		{1000, 999},
		{1000, 1},
		{3, 2},
		{4096, 1365},
	}
	for _, tc := range cases {
		backend := &testsupport.ScriptedBackend{Sizes: []int{tc.output}}
		h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}))
		id := h.enqueue(t, "a.png", tc.original)
		h.runAll(t)

		snap := h.snapshot(t, id)
		want := float64(tc.original-tc.output) * 100 / float64(tc.original)
		if snap.Result == nil || snap.Result.Savings != want {
			t.Fatalf("%d -> %d: expected savings %v, got %+v", tc.original, tc.output, want, snap.Result)
		}
	}
}

func TestTraceSequenceIsMonotonic(t *testing.T) {
	backend := &testsupport.ScriptedBackend{Sizes: []int{500, 500, 500, 500, 200}, Width: 800, Height: 600}
	plan := testsupport.PlanOf(
		cascade.Parameters{},
		cascade.Parameters{Quality: cascade.Float(0.7)},
		cascade.Parameters{Format: "jpeg", ResolutionScale: cascade.Float(0.5)},
	)
	h := newHarness(t, backend, plan)
	first := h.enqueue(t, "a.png", 500)
	second := h.enqueue(t, "b.png", 500)

	h.runAll(t)

	for _, id := range []string{first, second} {
		snap := h.snapshot(t, id)
		for i, entry := range snap.Trace {
			if entry.Sequence != i+1 {
				t.Fatalf("%s entry %d has sequence %d", id, i, entry.Sequence)
			}
			if i > 0 && entry.At.Before(snap.Trace[i-1].At) {
				t.Fatalf("%s entry %d is older than its predecessor", id, i)
			}
		}
	}

	// Every observed snapshot must extend, never rewrite, the earlier ones.
	seen := map[string][]string{}
	for _, snap := range h.events.all() {
		texts := traceTexts(snap)
		prev := seen[snap.ID]
		if len(texts) < len(prev) || !slices.Equal(texts[:len(prev)], prev) {
			t.Fatalf("trace for %s was rewritten: %v then %v", snap.ID, prev, texts)
		}
		seen[snap.ID] = texts
	}
}

func TestRunAllIsSerialAndOrdered(t *testing.T) {
	backend := &testsupport.ScriptedBackend{Sizes: []int{10, 2000, 2000, 10, 10}}
	h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}, cascade.Parameters{}))

	processing := 0
	maxProcessing := 0
	watcher := workflow.ObserverFunc(func(queue.Snapshot) {
		processing = 0
		for _, snap := range h.manager.Snapshots() {
			if snap.Status == queue.StatusProcessing {
				processing++
			}
		}
		if processing > maxProcessing {
			maxProcessing = processing
		}
	})
	h.manager = workflow.NewManager(h.provider, backend, nil, workflow.WithObserver(h.events), workflow.WithObserver(watcher))

	var ids []string
	for _, name := range []string{"a.png", "b.png", "c.png", "d.png"} {
		ids = append(ids, h.enqueue(t, name, 100))
	}
	h.runAll(t)

	if maxProcessing != 1 {
		t.Fatalf("expected exactly one record processing at a time, saw %d", maxProcessing)
	}
	if got := h.events.finalized(); !reflect.DeepEqual(got, ids) {
		t.Fatalf("records finalized out of order: %v, want %v", got, ids)
	}
	if got := h.provider.Requested(); !reflect.DeepEqual(got, []string{"a.png", "b.png", "c.png", "d.png"}) {
		t.Fatalf("plans requested out of order: %v", got)
	}
	statuses := []queue.Status{}
	for _, id := range ids {
		statuses = append(statuses, h.snapshot(t, id).Status)
	}
	want := []queue.Status{queue.StatusComplete, queue.StatusOptimizationFailed, queue.StatusComplete, queue.StatusComplete}
	if !reflect.DeepEqual(statuses, want) {
		t.Fatalf("unexpected statuses %v, want %v", statuses, want)
	}
}

func TestScenarioSecondStrategyWins(t *testing.T) {
	backend := &testsupport.ScriptedBackend{Sizes: []int{1_050_000, 400_000}}
	plan := cascade.Plan{
		QualityFloorInfo: "SSIM > 0.9",
		Cascade: []cascade.Strategy{
			{Name: "Re-encode", Tool: "mozjpeg", Parameters: cascade.Parameters{Quality: cascade.Float(0.9)}, Rationale: "gentle first"},
			{Name: "WebP", Tool: "cwebp", Parameters: cascade.Parameters{Format: "webp", Quality: cascade.Float(0.8)}, Rationale: "switch format"},
		},
	}
	h := newHarness(t, backend, plan)
	id := h.enqueue(t, "holiday.jpg", 1_000_000)

	h.runAll(t)

	snap := h.snapshot(t, id)
	if snap.Status != queue.StatusComplete || snap.Result.AttemptIndex != 2 || snap.Result.Savings != 60.0 {
		t.Fatalf("unexpected outcome %s %+v", snap.Status, snap.Result)
	}
	wantKinds := []cascade.TraceKind{
		cascade.TraceSystem, cascade.TraceSystem, cascade.TraceRationale,
		cascade.TraceStrategyStart, cascade.TraceRationale, cascade.TraceCommand, cascade.TraceFailure,
		cascade.TraceStrategyStart, cascade.TraceRationale, cascade.TraceCommand, cascade.TraceSuccess,
		cascade.TraceSuccess,
	}
	if got := traceKinds(snap); !reflect.DeepEqual(got, wantKinds) {
		t.Fatalf("unexpected trace kinds %v", got)
	}
	texts := traceTexts(snap)
	if texts[2] != "Conceptual quality floor: SSIM > 0.9" {
		t.Fatalf("unexpected floor entry %q", texts[2])
	}
	if texts[7] != "[ATTEMPT 2/2] Trying: WebP" || texts[9] != `cwebp {"format":"webp","quality":0.8}` {
		t.Fatalf("unexpected attempt entries %q / %q", texts[7], texts[9])
	}
	if !strings.HasPrefix(texts[10], "SUCCESS! Output size (390.6") || !strings.HasSuffix(texts[10], "smaller than the original (976.56 KB).") {
		t.Fatalf("unexpected success entry %q", texts[10])
	}
	if snap.Result.Output.Name != "holiday-optimized.webp" {
		t.Fatalf("unexpected output name %q", snap.Result.Output.Name)
	}
}

func TestScenarioEqualSizeIsNotAReduction(t *testing.T) {
	backend := &testsupport.ScriptedBackend{Sizes: []int{1_000_000}}
	h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}))
	id := h.enqueue(t, "lossless.png", 1_000_000)

	h.runAll(t)

	snap := h.snapshot(t, id)
	if snap.Status != queue.StatusOptimizationFailed {
		t.Fatalf("expected OPTIMIZATION_FAILED, got %s", snap.Status)
	}
	if backend.Calls() != 1 {
		t.Fatalf("expected 1 attempt, got %d", backend.Calls())
	}
	failures := 0
	for _, entry := range snap.Trace {
		if entry.Kind == cascade.TraceFailure && strings.HasPrefix(entry.Text, "FAILED.") {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("expected one no-reduction entry, got %d", failures)
	}
}

func TestScenarioBackendErrorStopsCascade(t *testing.T) {
	backend := &testsupport.ScriptedBackend{
		Sizes: []int{1500},
		Errs:  map[int]error{2: errors.New("encoder crashed")},
	}
	h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}, cascade.Parameters{Format: "avif"}, cascade.Parameters{}))
	id := h.enqueue(t, "photo.png", 1000)

	h.runAll(t)

	snap := h.snapshot(t, id)
	if snap.Status != queue.StatusError {
		t.Fatalf("expected ERROR, got %s", snap.Status)
	}
	if !strings.Contains(snap.Error, "encoder crashed") || !strings.Contains(snap.Error, services.ErrBackendFailed.Error()) {
		t.Fatalf("error should describe the backend failure, got %q", snap.Error)
	}
	if strings.Contains(snap.Error, "exhaust") || strings.Contains(snap.Error, "All strategies") {
		t.Fatalf("error must not claim exhaustion: %q", snap.Error)
	}
	if backend.Calls() != 2 {
		t.Fatalf("third strategy must not run, got %d calls", backend.Calls())
	}

	var noReduction, processingFailed int
	for _, entry := range snap.Trace {
		switch {
		case entry.Kind == cascade.TraceFailure && strings.HasPrefix(entry.Text, "FAILED."):
			noReduction++
		case entry.Kind == cascade.TraceFailure && strings.HasPrefix(entry.Text, "Processing failed:"):
			processingFailed++
		}
	}
	if noReduction != 1 || processingFailed != 1 {
		t.Fatalf("expected one no-reduction and one processing failure entry, got %d and %d", noReduction, processingFailed)
	}
}

func TestResetDiscardsInFlightWrites(t *testing.T) {
	backend := &testsupport.ScriptedBackend{
		Sizes:   []int{10},
		Gate:    make(chan struct{}),
		Started: make(chan int, 1),
	}
	h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}))
	old := h.enqueue(t, "old.png", 100)
	h.enqueue(t, "waiting.png", 100)

	done := make(chan error, 1)
	go func() { done <- h.manager.RunAll(context.Background()) }()

	select {
	case <-backend.Started:
	case <-time.After(5 * time.Second):
		t.Fatal("backend never started")
	}
	if err := h.manager.RunAll(context.Background()); !errors.Is(err, workflow.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	if cleared := h.manager.Reset(); cleared != 2 {
		t.Fatalf("expected 2 cleared records, got %d", cleared)
	}
	before := len(h.events.all())
	close(backend.Gate)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunAll returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunAll did not return after reset")
	}

	if len(h.manager.Snapshots()) != 0 {
		t.Fatalf("reset store should stay empty, got %+v", h.manager.Snapshots())
	}
	if _, ok := h.manager.Snapshot(old); ok {
		t.Fatal("in-flight record resurrected after reset")
	}
	if after := len(h.events.all()); after != before {
		t.Fatalf("observers received %d snapshots after reset", after-before)
	}
	if backend.Calls() != 1 {
		t.Fatalf("records cleared by reset must not run, got %d calls", backend.Calls())
	}
}

func TestRecordsEnqueuedDuringRunWait(t *testing.T) {
	backend := &testsupport.ScriptedBackend{
		Sizes:   []int{10, 10},
		Gate:    make(chan struct{}),
		Started: make(chan int, 2),
	}
	h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}))
	first := h.enqueue(t, "first.png", 100)

	done := make(chan error, 1)
	go func() { done <- h.manager.RunAll(context.Background()) }()
	<-backend.Started
	late := h.enqueue(t, "late.png", 100)
	close(backend.Gate)
	if err := <-done; err != nil {
		t.Fatalf("RunAll returned error: %v", err)
	}

	if h.snapshot(t, first).Status != queue.StatusComplete {
		t.Fatal("first record should be complete")
	}
	if h.snapshot(t, late).Status != queue.StatusQueued {
		t.Fatal("record enqueued mid-run should wait for the next run")
	}

	h.runAll(t)
	if h.snapshot(t, late).Status != queue.StatusComplete {
		t.Fatal("late record should complete on the next run")
	}
	if status := h.manager.Status(); status.Running || status.Counts[queue.StatusComplete] != 2 || status.LastRecord.ID != late {
		t.Fatalf("unexpected status summary %+v", status)
	}
}

func TestRunAllHonoursCancellation(t *testing.T) {
	backend := &testsupport.ScriptedBackend{}
	h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}))
	id := h.enqueue(t, "photo.png", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.manager.RunAll(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if h.snapshot(t, id).Status != queue.StatusQueued {
		t.Fatal("cancelled run must leave the record queued")
	}
}

func TestEnqueueRejectsUnsupportedContent(t *testing.T) {
	backend := &testsupport.ScriptedBackend{Reject: true}
	h := newHarness(t, backend, testsupport.PlanOf(cascade.Parameters{}))

	_, err := h.manager.Enqueue(context.Background(), testsupport.SizedArtifact("notes.txt", 10), cascade.ProfileArchive)
	if !errors.Is(err, workflow.ErrUnsupportedArtifact) || !errors.Is(err, testsupport.ErrNotAnImage) {
		t.Fatalf("expected ErrUnsupportedArtifact wrapping the decode error, got %v", err)
	}
	backend.Reject = false
	if _, err := h.manager.Enqueue(context.Background(), cascade.NewArtifact("empty.png", nil), cascade.ProfileArchive); !errors.Is(err, workflow.ErrUnsupportedArtifact) {
		t.Fatalf("expected empty artifact to be refused, got %v", err)
	}
	if _, err := h.manager.Enqueue(context.Background(), testsupport.SizedArtifact("a.png", 10), "tiny"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected unknown profile to be a validation error, got %v", err)
	}
	if len(h.manager.Snapshots()) != 0 {
		t.Fatal("rejected artifacts must not be queued")
	}

	id, err := h.manager.Enqueue(context.Background(), testsupport.SizedArtifact("b.png", 10), "aggressive")
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if snap := h.snapshot(t, id); snap.Profile != cascade.ProfileSuperSmall || snap.Status != queue.StatusQueued {
		t.Fatalf("unexpected queued record %+v", snap)
	}
}
