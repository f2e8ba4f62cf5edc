package queue_test

import (
	"errors"
	"testing"
	"time"

	"squish/internal/cascade"
	"squish/internal/queue"
)

func TestTransitions(t *testing.T) {
	cases := []struct {
		from queue.Status
		to   queue.Status
		ok   bool
	}{
		{queue.StatusQueued, queue.StatusProcessing, true},
		{queue.StatusProcessing, queue.StatusComplete, true},
		{queue.StatusProcessing, queue.StatusOptimizationFailed, true},
		{queue.StatusProcessing, queue.StatusError, true},
		{queue.StatusQueued, queue.StatusComplete, false},
		{queue.StatusComplete, queue.StatusProcessing, false},
		{queue.StatusError, queue.StatusQueued, false},
		{queue.StatusOptimizationFailed, queue.StatusComplete, false},
		{queue.StatusProcessing, queue.StatusQueued, false},
	}
	for _, tc := range cases {
		rec := newRecord("r")
		rec.Status = tc.from
		err := rec.Transition(tc.to, time.Now())
		if tc.ok && err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, queue.ErrInvalidTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		if !tc.ok && rec.Status != tc.from {
			t.Fatalf("%s -> %s: rejected transition changed status to %s", tc.from, tc.to, rec.Status)
		}
	}
}

func TestTransitionStampsTimes(t *testing.T) {
	rec := newRecord("r")
	start := time.Unix(10, 0)
	end := time.Unix(25, 0)
	if err := rec.Transition(queue.StatusProcessing, start); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := rec.Transition(queue.StatusOptimizationFailed, end); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	snap := rec.Snapshot()
	if !snap.Done() || snap.Duration() != 15*time.Second {
		t.Fatalf("unexpected snapshot timing %+v", snap)
	}
}

func TestAppendTraceSequence(t *testing.T) {
	rec := newRecord("r")
	for i, kind := range cascade.TraceKinds() {
		entry := rec.AppendTrace(kind, string(kind), time.Now())
		if entry.Sequence != i+1 {
			t.Fatalf("entry %d has sequence %d", i, entry.Sequence)
		}
	}
	last, ok := rec.Snapshot().LastTrace()
	if !ok || last.Kind != cascade.TraceFailure {
		t.Fatalf("unexpected last entry %+v", last)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" optimization_failed "); !ok || status != queue.StatusOptimizationFailed {
		t.Fatalf("unexpected parse result %q %v", status, ok)
	}
	if _, ok := queue.ParseStatus("pending"); ok {
		t.Fatal("expected unknown status to fail")
	}
	terminal := 0
	for _, status := range queue.AllStatuses() {
		if status.IsTerminal() {
			terminal++
		}
	}
	if terminal != 3 {
		t.Fatalf("expected 3 terminal statuses, got %d", terminal)
	}
}
