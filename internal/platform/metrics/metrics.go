package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds service-wide Prometheus metrics. Module-specific metrics live
// next to their modules.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	ClaimsIntaken   prometheus.Counter
}

// New creates and registers all platform metrics.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "valcore_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "path", "status"}),

		ClaimsIntaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "valcore_claims_intaken_total",
			Help: "Total claims accepted for processing",
		}),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	if m != nil {
		m.RequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// IncrementClaimsIntaken records a claim intake.
func (m *Metrics) IncrementClaimsIntaken() {
	if m != nil {
		m.ClaimsIntaken.Inc()
	}
}
