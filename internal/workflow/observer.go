package workflow

import "squish/internal/queue"

// Observer receives a snapshot after every committed record change.
// Implementations run on the RunAll goroutine and should return quickly.
type Observer interface {
	RecordUpdated(snapshot queue.Snapshot)
}

// ResetObserver is an optional extension for observers that keep per-record
// state. Manager.Reset calls QueueReset after the store is cleared; records
// dropped by the reset produce no further snapshots.
type ResetObserver interface {
	QueueReset()
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(queue.Snapshot)

// RecordUpdated implements Observer.
func (f ObserverFunc) RecordUpdated(snapshot queue.Snapshot) {
	if f != nil {
		f(snapshot)
	}
}

type observers []Observer

func (o observers) RecordUpdated(snapshot queue.Snapshot) {
	for _, obs := range o {
		if obs != nil {
			obs.RecordUpdated(snapshot)
		}
	}
}

func (o observers) QueueReset() {
	for _, obs := range o {
		if r, ok := obs.(ResetObserver); ok {
			r.QueueReset()
		}
	}
}
