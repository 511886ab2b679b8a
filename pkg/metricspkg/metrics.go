// Package metricspkg provides prometheus instrumentation of ledger operations.
package metricspkg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds ledger collectors. A nil *Metrics records nothing.
type Metrics struct {
	operations      *prometheus.CounterVec
	persistDuration prometheus.Histogram
	persistFailures prometheus.Counter
}

// New registers the ledger collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and result.",
		}, []string{"operation", "result"}),
		persistDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "persist_duration_seconds",
			Help:      "Duration of snapshot writes.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		persistFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "persist_failures_total",
			Help:      "Snapshot writes that failed.",
		}),
	}
}

// ObserveOperation counts one operation with its result label.
func (m *Metrics) ObserveOperation(operation, result string) {
	if m == nil {
		return
	}

	m.operations.WithLabelValues(operation, result).Inc()
}

// ObservePersist records one snapshot write.
func (m *Metrics) ObservePersist(d time.Duration, err error) {
	if m == nil {
		return
	}

	m.persistDuration.Observe(d.Seconds())

	if err != nil {
		m.persistFailures.Inc()
	}
}

// WriteTextfile writes all metrics gathered by g to path in the text exposition format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}
