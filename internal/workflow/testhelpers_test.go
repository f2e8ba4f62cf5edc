package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"squish/internal/cascade"
	"squish/internal/queue"
	"squish/internal/testsupport"
	"squish/internal/workflow"
)

type harness struct {
	manager  *workflow.Manager
	backend  *testsupport.ScriptedBackend
	provider *testsupport.StaticProvider
	events   *eventLog
}

func newHarness(t *testing.T, backend *testsupport.ScriptedBackend, plan cascade.Plan, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	provider := &testsupport.StaticProvider{Plan: plan}
	events := &eventLog{}
	seq := 0
	opts = append([]workflow.ManagerOption{
		workflow.WithObserver(events),
		workflow.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("rec-%d", seq)
		}),
	}, opts...)
	return &harness{
		manager:  workflow.NewManager(provider, backend, nil, opts...),
		backend:  backend,
		provider: provider,
		events:   events,
	}
}

func (h *harness) enqueue(t *testing.T, name string, size int) string {
	t.Helper()
	id, err := h.manager.Enqueue(context.Background(), testsupport.SizedArtifact(name, size), cascade.ProfileBalanced)
	if err != nil {
		t.Fatalf("Enqueue(%s) failed: %v", name, err)
	}
	return id
}

func (h *harness) runAll(t *testing.T) {
	t.Helper()
	if err := h.manager.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}
}

func (h *harness) snapshot(t *testing.T, id string) queue.Snapshot {
	t.Helper()
	snap, ok := h.manager.Snapshot(id)
	if !ok {
		t.Fatalf("record %s not found", id)
	}
	return snap
}

// eventLog records every snapshot observers receive.
type eventLog struct {
	mu        sync.Mutex
	snapshots []queue.Snapshot
}

func (e *eventLog) RecordUpdated(snapshot queue.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots = append(e.snapshots, snapshot)
}

func (e *eventLog) all() []queue.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]queue.Snapshot, len(e.snapshots))
	copy(out, e.snapshots)
	return out
}

// finalized returns record ids in the order they reached a terminal status.
func (e *eventLog) finalized() []string {
	var ids []string
	for _, snap := range e.all() {
		if snap.Done() {
			ids = append(ids, snap.ID)
		}
	}
	return ids
}

func traceKinds(snap queue.Snapshot) []cascade.TraceKind {
	kinds := make([]cascade.TraceKind, len(snap.Trace))
	for i, entry := range snap.Trace {
		kinds[i] = entry.Kind
	}
	return kinds
}

func traceTexts(snap queue.Snapshot) []string {
	texts := make([]string, len(snap.Trace))
	for i, entry := range snap.Trace {
		texts[i] = entry.Text
	}
	return texts
}
