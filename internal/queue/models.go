package queue

import (
	"fmt"
	"strings"
	"time"

	"squish/internal/cascade"
)

// Status represents the lifecycle of a processing record.
type Status string

const (
	StatusQueued             Status = "QUEUED"
	StatusProcessing         Status = "PROCESSING"
	StatusComplete           Status = "COMPLETE"
	StatusOptimizationFailed Status = "OPTIMIZATION_FAILED"
	StatusError              Status = "ERROR"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusComplete,
	StatusOptimizationFailed,
	StatusError,
}

type statusTransition struct {
	from Status
	to   Status
}

var allowedTransitions = map[statusTransition]struct{}{
	{from: StatusQueued, to: StatusProcessing}:             {},
	{from: StatusProcessing, to: StatusComplete}:           {},
	{from: StatusProcessing, to: StatusOptimizationFailed}: {},
	{from: StatusProcessing, to: StatusError}:              {},
}

// AllStatuses returns every status in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status, case-insensitively.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToUpper(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the record is finished.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusComplete, StatusOptimizationFailed, StatusError:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to Status) bool {
	_, ok := allowedTransitions[statusTransition{from: from, to: to}]
	return ok
}

// TraceEntry is one line of a record's execution trace.
type TraceEntry struct {
	Sequence int
	Kind     cascade.TraceKind
	Text     string
	At       time.Time
}

// Result describes the accepted strategy of a COMPLETE record.
type Result struct {
	Strategy     cascade.Strategy
	Output       cascade.Artifact
	AttemptIndex int
	Savings      float64
}

// Record is one artifact moving through the cascade.
type Record struct {
	ID         string
	Original   cascade.Artifact
	Profile    cascade.Profile
	Status     Status
	Plan       *cascade.Plan
	Trace      []TraceEntry
	Result     *Result
	Error      string
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRecord builds a QUEUED record.
func NewRecord(id string, original cascade.Artifact, profile cascade.Profile, now time.Time) *Record {
	return &Record{
		ID:         id,
		Original:   original,
		Profile:    profile,
		Status:     StatusQueued,
		EnqueuedAt: now,
	}
}

// Transition moves the record to status, stamping start and finish times.
func (r *Record) Transition(to Status, now time.Time) error {
	if !CanTransition(r.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	switch {
	case to == StatusProcessing:
		r.StartedAt = now
	case to.IsTerminal():
		r.FinishedAt = now
	}
	return nil
}

// AppendTrace adds an entry with the next sequence number.
func (r *Record) AppendTrace(kind cascade.TraceKind, text string, at time.Time) TraceEntry {
	entry := TraceEntry{
		Sequence: len(r.Trace) + 1,
		Kind:     kind,
		Text:     text,
		At:       at,
	}
	r.Trace = append(r.Trace, entry)
	return entry
}

func (r *Record) clone() *Record {
	out := *r
	if r.Plan != nil {
		plan := r.Plan.Clone()
		out.Plan = &plan
	}
	if r.Trace != nil {
		out.Trace = make([]TraceEntry, len(r.Trace))
		copy(out.Trace, r.Trace)
	}
	if r.Result != nil {
		result := *r.Result
		result.Strategy = r.Result.Strategy.Clone()
		out.Result = &result
	}
	return &out
}

// Snapshot is a detached copy of a Record. Mutating it never affects the store.
type Snapshot Record

// Snapshot returns a deep copy of the record.
func (r *Record) Snapshot() Snapshot {
	return Snapshot(*r.clone())
}

// Done reports whether the record reached a terminal status.
func (s Snapshot) Done() bool {
	return s.Status.IsTerminal()
}

// Duration is the time spent processing, zero until the record finishes.
func (s Snapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// LastTrace returns the newest trace entry, if any.
func (s Snapshot) LastTrace() (TraceEntry, bool) {
	if len(s.Trace) == 0 {
		return TraceEntry{}, false
	}
	return s.Trace[len(s.Trace)-1], true
}
