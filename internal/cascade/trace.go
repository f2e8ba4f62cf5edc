package cascade

// TraceKind classifies a trace entry.
type TraceKind string

const (
	TraceSystem        TraceKind = "SYSTEM"
	TraceStrategyStart TraceKind = "STRATEGY_START"
	TraceRationale     TraceKind = "RATIONALE"
	TraceCommand       TraceKind = "COMMAND"
	TraceSuccess       TraceKind = "SUCCESS"
	TraceFailure       TraceKind = "FAILURE"
)

// TraceKinds lists every kind in a stable order.
func TraceKinds() []TraceKind {
	return []TraceKind{TraceSystem, TraceStrategyStart, TraceRationale, TraceCommand, TraceSuccess, TraceFailure}
}

// Tracer receives trace entries in the order they happen.
type Tracer interface {
	Trace(kind TraceKind, text string)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(kind TraceKind, text string)

// Trace implements Tracer.
func (f TracerFunc) Trace(kind TraceKind, text string) {
	if f != nil {
		f(kind, text)
	}
}

type discardTracer struct{}

func (discardTracer) Trace(TraceKind, string) {}
