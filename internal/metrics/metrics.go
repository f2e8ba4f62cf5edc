// Package metrics exposes cascade activity as Prometheus collectors.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"squish/internal/cascade"
	"squish/internal/queue"
)

// Metrics holds the collectors and doubles as a workflow observer.
type Metrics struct {
	RecordsQueued     *prometheus.CounterVec
	RecordsFinished   *prometheus.CounterVec
	RecordsInFlight   prometheus.Gauge
	Attempts          *prometheus.CounterVec
	AttemptsPerRecord prometheus.Histogram
	Savings           *prometheus.HistogramVec
	BytesSaved        prometheus.Counter
	ProcessingTime    *prometheus.HistogramVec

	mu   sync.Mutex
	seen map[string]queue.Status
}

// NewMetrics registers every collector with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		RecordsQueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squish_records_queued_total",
				Help: "Total number of records admitted to the queue",
			},
			[]string{"profile"},
		),
		RecordsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squish_records_finished_total",
				Help: "Total number of records that reached a terminal status",
			},
			[]string{"profile", "status"},
		),
		RecordsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "squish_records_processing",
				Help: "Records currently in PROCESSING",
			},
		),
		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "squish_cascade_attempts_total",
				Help: "Total number of strategy attempts by result",
			},
			[]string{"result"},
		),
		AttemptsPerRecord: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "squish_cascade_attempts_per_record",
				Help:    "Strategies tried before a record finished",
				Buckets: []float64{1, 2, 3, 4, 5, 8},
			},
		),
		Savings: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "squish_savings_percent",
				Help:    "Size reduction of completed records, in percent",
				Buckets: prometheus.LinearBuckets(10, 10, 9),
			},
			[]string{"profile"},
		),
		BytesSaved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "squish_bytes_saved_total",
				Help: "Bytes removed across completed records",
			},
		),
		ProcessingTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "squish_record_duration_seconds",
				Help:    "Time from PROCESSING to a terminal status",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		seen: make(map[string]queue.Status),
	}
}

// RecordUpdated implements workflow.Observer. Only status changes move the
// collectors; trace-only updates are ignored.
func (m *Metrics) RecordUpdated(snap queue.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous, known := m.seen[snap.ID]
	if known && previous == snap.Status {
		return
	}
	m.seen[snap.ID] = snap.Status
	profile := string(snap.Profile)

	switch {
	case snap.Status == queue.StatusQueued:
		m.RecordsQueued.WithLabelValues(profile).Inc()
	case snap.Status == queue.StatusProcessing:
		m.RecordsInFlight.Inc()
	case snap.Status.IsTerminal():
		if previous == queue.StatusProcessing {
			m.RecordsInFlight.Dec()
		}
		delete(m.seen, snap.ID)
		m.observeFinished(snap, profile)
	}
}

// QueueReset implements workflow.ResetObserver. Records still PROCESSING
// when the queue was cleared leave the in-flight gauge.
func (m *Metrics) QueueReset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, status := range m.seen {
		if status == queue.StatusProcessing {
			m.RecordsInFlight.Dec()
		}
	}
	clear(m.seen)
}

func (m *Metrics) observeFinished(snap queue.Snapshot, profile string) {
	status := string(snap.Status)
	m.RecordsFinished.WithLabelValues(profile, status).Inc()
	m.ProcessingTime.WithLabelValues(status).Observe(snap.Duration().Seconds())

	attempts := 0
	for _, entry := range snap.Trace {
		if entry.Kind == cascade.TraceStrategyStart {
			attempts++
		}
	}
	if attempts > 0 {
		m.AttemptsPerRecord.Observe(float64(attempts))
	}

	switch snap.Status {
	case queue.StatusComplete:
		m.Attempts.WithLabelValues("no_reduction").Add(float64(max(attempts-1, 0)))
		m.Attempts.WithLabelValues("reduced").Inc()
		if res := snap.Result; res != nil {
			m.Savings.WithLabelValues(profile).Observe(res.Savings)
			m.BytesSaved.Add(float64(snap.Original.Size() - res.Output.Size()))
		}
	case queue.StatusOptimizationFailed:
		m.Attempts.WithLabelValues("no_reduction").Add(float64(attempts))
	case queue.StatusError:
		if attempts > 0 {
			m.Attempts.WithLabelValues("no_reduction").Add(float64(attempts - 1))
			m.Attempts.WithLabelValues("error").Inc()
		}
	}
}
