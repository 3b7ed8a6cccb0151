package honoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the honoring pipeline.
type Metrics struct {
	AttemptDuration *prometheus.HistogramVec
	Failures        *prometheus.CounterVec
	Results         *prometheus.CounterVec
	BreakerOpen     *prometheus.CounterVec
}

// NewMetrics creates and registers all honoring metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		AttemptDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "valcore_honoring_attempt_duration_seconds",
			Help:    "Duration of individual honoring attempts by adapter",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"adapter"}),

		Failures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "valcore_honoring_failures_total",
			Help: "Honoring attempt failures by adapter and category",
		}, []string{"adapter", "category"}),

		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "valcore_honoring_results_total",
			Help: "Settled honoring results by adapter and status",
		}, []string{"adapter", "status"}),

		BreakerOpen: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "valcore_honoring_breaker_short_circuits_total",
			Help: "Dispatches short-circuited because the adapter breaker was open",
		}, []string{"adapter"}),
	}
}

// ObserveAttempt records the duration of one provider call.
func (m *Metrics) ObserveAttempt(adapter string, d time.Duration) {
	if m != nil {
		m.AttemptDuration.WithLabelValues(adapter).Observe(d.Seconds())
	}
}

// IncrementFailure records one classified attempt failure.
func (m *Metrics) IncrementFailure(adapter, category string) {
	if m != nil {
		m.Failures.WithLabelValues(adapter, category).Inc()
	}
}

// IncrementResult records one settled result.
func (m *Metrics) IncrementResult(adapter, status string) {
	if m != nil {
		m.Results.WithLabelValues(adapter, status).Inc()
	}
}

// IncrementBreakerOpen records a short-circuited dispatch.
func (m *Metrics) IncrementBreakerOpen(adapter string) {
	if m != nil {
		m.BreakerOpen.WithLabelValues(adapter).Inc()
	}
}
