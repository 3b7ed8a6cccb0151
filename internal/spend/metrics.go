package spend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the clearing path.
type Metrics struct {
	ClaimsCleared    *prometheus.CounterVec
	ClaimsRejected   *prometheus.CounterVec
	ClearingDuration prometheus.Histogram
}

// NewMetrics creates and registers all clearing metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ClaimsCleared: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "valcore_claims_cleared_total",
			Help: "Claims that converged to a posted ledger transfer, by kind",
		}, []string{"kind"}),

		ClaimsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "valcore_claims_rejected_total",
			Help: "Claims rejected before or at clearing, by stage",
		}, []string{"stage"}),

		ClearingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "valcore_clearing_duration_seconds",
			Help:    "End-to-end duration of claim finalization",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementCleared records one cleared claim.
func (m *Metrics) IncrementCleared(kind string) {
	if m != nil {
		m.ClaimsCleared.WithLabelValues(kind).Inc()
	}
}

// IncrementRejected records one rejected claim at the given stage.
func (m *Metrics) IncrementRejected(stage string) {
	if m != nil {
		m.ClaimsRejected.WithLabelValues(stage).Inc()
	}
}

// ObserveClearing records the duration of one finalization.
func (m *Metrics) ObserveClearing(d time.Duration) {
	if m != nil {
		m.ClearingDuration.Observe(d.Seconds())
	}
}
