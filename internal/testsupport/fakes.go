package testsupport

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"squish/internal/cascade"
)

// ErrNotAnImage is returned by ScriptedBackend.Dimensions when Reject is set.
var ErrNotAnImage = errors.New("not an image")

// ScriptedBackend returns outputs of pre-set sizes, one per Compress call.
// Calls past the end of Sizes echo the input size back.
type ScriptedBackend struct {
	Sizes  []int
	Errs   map[int]error
	Width  int
	Height int
	Reject bool
	// Gate, when set, blocks every Compress call until it is closed or the
	// context ends.
	Gate chan struct{}
	// Started receives the 1-based call number as each Compress call begins.
	Started chan int

	mu      sync.Mutex
	calls   int
	options []cascade.Options
	digests []string
}

// Compress implements cascade.Backend.
func (b *ScriptedBackend) Compress(ctx context.Context, input cascade.Artifact, opts cascade.Options) (cascade.Artifact, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.options = append(b.options, opts)
	b.digests = append(b.digests, input.Digest)
	b.mu.Unlock()

	if b.Started != nil {
		select {
		case b.Started <- call:
		case <-ctx.Done():
			return cascade.Artifact{}, ctx.Err()
		}
	}
	if b.Gate != nil {
		select {
		case <-b.Gate:
		case <-ctx.Done():
			return cascade.Artifact{}, ctx.Err()
		}
	}
	if err := b.Errs[call]; err != nil {
		return cascade.Artifact{}, err
	}
	size := int(input.Size())
	if call <= len(b.Sizes) {
		size = b.Sizes[call-1]
	}
	return SizedArtifact("", size), nil
}

// Dimensions implements cascade.Backend.
func (b *ScriptedBackend) Dimensions(context.Context, cascade.Artifact) (int, int, error) {
	if b.Reject {
		return 0, 0, ErrNotAnImage
	}
	w, h := b.Width, b.Height
	if w == 0 && h == 0 {
		w, h = 1000, 1000
	}
	return w, h, nil
}

// Calls returns how many times Compress ran.
func (b *ScriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Options returns the options passed to each Compress call.
func (b *ScriptedBackend) Options() []cascade.Options {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]cascade.Options, len(b.options))
	copy(out, b.options)
	return out
}

// InputDigests returns the digest of the artifact given to each Compress call.
func (b *ScriptedBackend) InputDigests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.digests))
	copy(out, b.digests)
	return out
}

// StaticProvider returns the same plan (or error) for every artifact.
type StaticProvider struct {
	Plan cascade.Plan
	Err  error

	mu    sync.Mutex
	names []string
}

// FetchPlan implements the plan provider contract.
func (p *StaticProvider) FetchPlan(ctx context.Context, artifactName string, _ cascade.Profile) (cascade.Plan, error) {
	p.mu.Lock()
	p.names = append(p.names, artifactName)
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return cascade.Plan{}, err
	}
	if p.Err != nil {
		return cascade.Plan{}, p.Err
	}
	return p.Plan.Clone(), nil
}

// Requested returns the artifact names plans were requested for, in order.
func (p *StaticProvider) Requested() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// PlanOf builds a plan with one strategy per parameter set, named step-1..n.
func PlanOf(params ...cascade.Parameters) cascade.Plan {
	plan := cascade.Plan{QualityFloorInfo: "SSIM > 0.85"}
	for i, p := range params {
		plan.Cascade = append(plan.Cascade, cascade.Strategy{
			Name:       "step-" + strconv.Itoa(i+1),
			Tool:       "tool",
			Parameters: p,
			Rationale:  "because",
		})
	}
	return plan
}
