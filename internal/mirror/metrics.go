package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the narrative mirror.
type Metrics struct {
	EntriesRecorded *prometheus.CounterVec
	WriteFailures   prometheus.Counter
	QueueDropped    prometheus.Counter
}

// NewMetrics creates and registers all mirror metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		EntriesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "valcore_mirror_entries_total",
			Help: "Narrative entries recorded by status",
		}, []string{"status"}),

		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "valcore_mirror_write_failures_total",
			Help: "Best-effort narrative writes that failed",
		}),

		QueueDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "valcore_mirror_queue_dropped_total",
			Help: "Narrative entries dropped because the recorder queue was full",
		}),
	}
}

// IncrementRecorded records a successful append.
func (m *Metrics) IncrementRecorded(status string) {
	if m != nil {
		m.EntriesRecorded.WithLabelValues(status).Inc()
	}
}

// IncrementWriteFailure records a failed append.
func (m *Metrics) IncrementWriteFailure() {
	if m != nil {
		m.WriteFailures.Inc()
	}
}

// IncrementDropped records a dropped entry.
func (m *Metrics) IncrementDropped() {
	if m != nil {
		m.QueueDropped.Inc()
	}
}
