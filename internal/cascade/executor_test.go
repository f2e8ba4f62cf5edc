package cascade_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"squish/internal/cascade"
	"squish/internal/services"
)

type scriptedBackend struct {
	sizes    []int
	errs     map[int]error
	width    int
	height   int
	dimErr   error
	calls    []cascade.Options
	inputs   []string
	dimCalls int
}

func (b *scriptedBackend) Compress(_ context.Context, artifact cascade.Artifact, opts cascade.Options) (cascade.Artifact, error) {
	idx := len(b.calls)
	b.calls = append(b.calls, opts)
	b.inputs = append(b.inputs, artifact.Digest)
	if err := b.errs[idx]; err != nil {
		return cascade.Artifact{}, err
	}
	return cascade.NewArtifact("", make([]byte, b.sizes[idx])), nil
}

func (b *scriptedBackend) Dimensions(context.Context, cascade.Artifact) (int, int, error) {
	b.dimCalls++
	return b.width, b.height, b.dimErr
}

type recordedEntry struct {
	kind cascade.TraceKind
	text string
}

type recorder struct {
	entries []recordedEntry
}

func (r *recorder) Trace(kind cascade.TraceKind, text string) {
	r.entries = append(r.entries, recordedEntry{kind: kind, text: text})
}

func (r *recorder) kinds() []cascade.TraceKind {
	out := make([]cascade.TraceKind, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.kind
	}
	return out
}

func (r *recorder) count(kind cascade.TraceKind) int {
	n := 0
	for _, e := range r.entries {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func strategy(name string, params cascade.Parameters) cascade.Strategy {
	return cascade.Strategy{Name: name, Tool: "tool-" + name, Parameters: params, Rationale: "because " + name}
}

func originalOfSize(n int) cascade.Artifact {
	return cascade.NewArtifact("photo.png", make([]byte, n))
}

func TestExecuteStopsAtFirstReduction(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{120, 100, 40, 10}}
	plan := cascade.Plan{Cascade: []cascade.Strategy{
		strategy("a", cascade.Parameters{}),
		strategy("b", cascade.Parameters{}),
		strategy("c", cascade.Parameters{}),
		strategy("d", cascade.Parameters{}),
	}}
	rec := &recorder{}

	outcome, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(100), plan, rec)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !outcome.Success || outcome.AttemptIndex != 3 || outcome.Strategy.Name != "c" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if len(backend.calls) != 3 {
		t.Fatalf("backend invoked %d times, want 3", len(backend.calls))
	}
	if outcome.Output.Size() != 40 {
		t.Fatalf("unexpected output size %d", outcome.Output.Size())
	}
	if outcome.Output.Name != "photo-optimized.png" {
		t.Fatalf("unexpected output name %q", outcome.Output.Name)
	}
	if rec.count(cascade.TraceFailure) != 2 || rec.count(cascade.TraceSuccess) != 1 {
		t.Fatalf("unexpected trace kinds %v", rec.kinds())
	}
}

func TestExecuteAlwaysCompressesOriginal(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{200, 200, 200}}
	plan := cascade.Plan{Cascade: []cascade.Strategy{
		strategy("a", cascade.Parameters{}),
		strategy("b", cascade.Parameters{}),
		strategy("c", cascade.Parameters{}),
	}}
	original := originalOfSize(100)
	if _, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), original, plan, nil); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	for i, digest := range backend.inputs {
		if digest != original.Digest {
			t.Fatalf("attempt %d compressed %s, want original %s", i+1, digest, original.Digest)
		}
	}
}

func TestExecuteExhausted(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{100, 150}}
	plan := cascade.Plan{Cascade: []cascade.Strategy{
		strategy("a", cascade.Parameters{}),
		strategy("b", cascade.Parameters{}),
	}}
	rec := &recorder{}
	outcome, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(100), plan, rec)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if outcome.Success || outcome.AttemptsTried != 2 {
		t.Fatalf("expected exhausted after 2 attempts, got %+v", outcome)
	}
	if rec.count(cascade.TraceSuccess) != 0 || rec.count(cascade.TraceFailure) != 2 {
		t.Fatalf("unexpected trace kinds %v", rec.kinds())
	}
}

func TestExecuteEqualSizeIsNotReduction(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{1_000_000}}
	plan := cascade.Plan{Cascade: []cascade.Strategy{strategy("lossless", cascade.Parameters{})}}
	rec := &recorder{}
	outcome, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(1_000_000), plan, rec)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if outcome.Success || outcome.AttemptsTried != 1 {
		t.Fatalf("expected exhausted with 1 attempt, got %+v", outcome)
	}
	want := []cascade.TraceKind{cascade.TraceStrategyStart, cascade.TraceRationale, cascade.TraceCommand, cascade.TraceFailure}
	if got := rec.kinds(); !equalKinds(got, want) {
		t.Fatalf("trace kinds = %v, want %v", got, want)
	}
}

func TestExecuteEmptyCascadeIsPlanInvalid(t *testing.T) {
	backend := &scriptedBackend{}
	rec := &recorder{}
	_, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(10), cascade.Plan{}, rec)
	if !errors.Is(err, services.ErrPlanInvalid) {
		t.Fatalf("expected ErrPlanInvalid, got %v", err)
	}
	if len(backend.calls) != 0 || len(rec.entries) != 0 {
		t.Fatal("empty cascade must not touch the backend or trace")
	}
}

func TestExecuteScenarioSixtyPercent(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{1_050_000, 400_000}}
	plan := cascade.Plan{Cascade: []cascade.Strategy{
		strategy("jpeg", cascade.Parameters{Quality: cascade.Float(0.9)}),
		strategy("webp", cascade.Parameters{Format: "webp", Quality: cascade.Float(0.8)}),
	}}
	rec := &recorder{}
	original := originalOfSize(1_000_000)

	outcome, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), original, plan, rec)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !outcome.Success || outcome.AttemptIndex != 2 {
		t.Fatalf("expected success at attempt 2, got %+v", outcome)
	}
	if got := cascade.Savings(original.Size(), outcome.Output.Size()); got != 60.0 {
		t.Fatalf("savings = %v, want 60", got)
	}
	if outcome.Output.Name != "photo-optimized.webp" {
		t.Fatalf("unexpected output name %q", outcome.Output.Name)
	}
	if backend.calls[1].TargetFormat != "webp" || *backend.calls[1].Quality != 0.8 {
		t.Fatalf("unexpected options for attempt 2: %+v", backend.calls[1])
	}
	want := []cascade.TraceKind{
		cascade.TraceStrategyStart, cascade.TraceRationale, cascade.TraceCommand, cascade.TraceFailure,
		cascade.TraceStrategyStart, cascade.TraceRationale, cascade.TraceCommand, cascade.TraceSuccess,
	}
	if got := rec.kinds(); !equalKinds(got, want) {
		t.Fatalf("trace kinds = %v, want %v", got, want)
	}
	if rec.entries[4].text != "[ATTEMPT 2/2] Trying: webp" {
		t.Fatalf("unexpected start text %q", rec.entries[4].text)
	}
	if rec.entries[6].text != `tool-webp {"format":"webp","quality":0.8}` {
		t.Fatalf("unexpected command text %q", rec.entries[6].text)
	}
	if rec.entries[5].text != "because webp" {
		t.Fatalf("rationale should be carried verbatim, got %q", rec.entries[5].text)
	}
}

func TestExecuteBackendFailureStopsCascade(t *testing.T) {
	backend := &scriptedBackend{
		sizes: []int{500, 0, 10},
		errs:  map[int]error{1: errors.New("encoder crashed")},
	}
	plan := cascade.Plan{Cascade: []cascade.Strategy{
		strategy("a", cascade.Parameters{}),
		strategy("b", cascade.Parameters{}),
		strategy("c", cascade.Parameters{}),
	}}
	rec := &recorder{}

	_, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(100), plan, rec)
	if !errors.Is(err, services.ErrBackendFailed) {
		t.Fatalf("expected ErrBackendFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "encoder crashed") {
		t.Fatalf("error should carry the backend cause: %v", err)
	}
	if len(backend.calls) != 2 {
		t.Fatalf("backend invoked %d times, want 2", len(backend.calls))
	}
	if rec.count(cascade.TraceFailure) != 1 {
		t.Fatalf("only the first attempt should log a no-reduction failure, got %v", rec.kinds())
	}
	if last := rec.entries[len(rec.entries)-1]; last.kind != cascade.TraceCommand {
		t.Fatalf("trace should end at the failing COMMAND, got %v", last.kind)
	}
}

func TestExecuteResolutionScale(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{10}, width: 1999, height: 1000}
	plan := cascade.Plan{Cascade: []cascade.Strategy{
		strategy("shrink", cascade.Parameters{Format: "jpeg", Quality: cascade.Float(0.7), ResolutionScale: cascade.Float(0.9)}),
	}}
	rec := &recorder{}
	if _, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(100), plan, rec); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if backend.calls[0].MaxDimension != 1799 {
		t.Fatalf("max dimension = %d, want 1799", backend.calls[0].MaxDimension)
	}
	if rec.entries[3].kind != cascade.TraceSystem || rec.entries[3].text != "Resolution reduced to 90% (1799px max)..." {
		t.Fatalf("unexpected resize trace %+v", rec.entries[3])
	}
}

func TestExecuteResolutionScaleOnTinyImage(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{10}, width: 3, height: 2}
	plan := cascade.Plan{Cascade: []cascade.Strategy{
		strategy("shrink", cascade.Parameters{ResolutionScale: cascade.Float(0.25)}),
	}}
	rec := &recorder{}
	if _, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(100), plan, rec); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if backend.calls[0].MaxDimension != 1 {
		t.Fatalf("max dimension = %d, want 1", backend.calls[0].MaxDimension)
	}
	if rec.entries[3].text != "Resolution reduced to 25% (1px max)..." {
		t.Fatalf("unexpected resize trace %q", rec.entries[3].text)
	}
}

func TestExecuteScaleAtOrAboveOneIsNoop(t *testing.T) {
	for _, scale := range []float64{1.0, 1.5} {
		backend := &scriptedBackend{sizes: []int{10}, width: 100, height: 100}
		plan := cascade.Plan{Cascade: []cascade.Strategy{strategy("x", cascade.Parameters{ResolutionScale: cascade.Float(scale)})}}
		rec := &recorder{}
		if _, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(100), plan, rec); err != nil {
			t.Fatalf("Execute returned error: %v", err)
		}
		if backend.dimCalls != 0 || backend.calls[0].MaxDimension != 0 {
			t.Fatalf("scale %v should not resize: %+v", scale, backend.calls[0])
		}
		if rec.count(cascade.TraceSystem) != 0 {
			t.Fatalf("scale %v should not trace a resize", scale)
		}
	}
}

func TestExecuteDimensionFailureIsBackendFailure(t *testing.T) {
	backend := &scriptedBackend{sizes: []int{10}, dimErr: errors.New("not an image")}
	plan := cascade.Plan{Cascade: []cascade.Strategy{strategy("x", cascade.Parameters{ResolutionScale: cascade.Float(0.5)})}}
	_, err := cascade.NewExecutor(backend, nil).Execute(context.Background(), originalOfSize(100), plan, nil)
	if !errors.Is(err, services.ErrBackendFailed) {
		t.Fatalf("expected ErrBackendFailed, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Fatal("compress must not run when dimensions cannot be read")
	}
}

func TestMaxDimension(t *testing.T) {
	cases := []struct {
		w, h  int
		scale float64
		want  int
	}{
		{4000, 3000, 0.5, 2000},
		{1000, 3001, 0.9, 2700},
		{10, 10, 0.01, 1},
		{1, 1, 0.5, 1},
	}
	for _, tc := range cases {
		if got := cascade.MaxDimension(tc.w, tc.h, tc.scale); got != tc.want {
			t.Fatalf("MaxDimension(%d, %d, %v) = %d, want %d", tc.w, tc.h, tc.scale, got, tc.want)
		}
	}
}

func equalKinds(a, b []cascade.TraceKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
