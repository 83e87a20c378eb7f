package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// AccessMetrics counts and times the access operations.
type AccessMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewAccessMetrics registers the access collectors with registerer.
func NewAccessMetrics(registerer prometheus.Registerer) *AccessMetrics {
	factory := promauto.With(registerer)

	return &AccessMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lab_access_operations_total",
			Help: "Access operations by name and outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lab_access_operation_duration_seconds",
			Help:    "Access operation latency including precondition reads and read-back",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// observe records one finished operation. A nil receiver is a no-op.
func (m *AccessMetrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, Outcome(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
