// Package metrics exposes prometheus instrumentation for backend calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation labels.
const (
	OpCreate = "create"
	OpDelete = "delete"
)

var (
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slicemgr",
			Subsystem: "dispatch",
			Name:      "total",
			Help:      "Total number of backend dispatches by operation and result",
		},
		[]string{"operation", "result"},
	)

	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slicemgr",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Duration of backend dispatches in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
		[]string{"operation"},
	)

	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slicemgr",
			Subsystem: "normalize",
			Name:      "validation_failures_total",
			Help:      "Create requests rejected before dispatch, by reason",
		},
		[]string{"reason"},
	)

	listFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slicemgr",
			Subsystem: "backend",
			Name:      "list_failures_total",
			Help:      "Slice listings that degraded to an empty result",
		},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(
		dispatchTotal,
		dispatchDuration,
		validationFailures,
		listFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RecordDispatch records one backend dispatch. result is the outcome reason,
// or "success".
func RecordDispatch(operation, result string, elapsed time.Duration) {
	dispatchTotal.WithLabelValues(operation, result).Inc()
	dispatchDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordValidationFailure counts a rejected create request.
func RecordValidationFailure(reason string) {
	validationFailures.WithLabelValues(reason).Inc()
}

// RecordListFailure counts a listing that fell back to no slices.
func RecordListFailure() {
	listFailures.Inc()
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
