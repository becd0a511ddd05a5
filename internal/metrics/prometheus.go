// Package metrics exposes a Prometheus registry for queue dispatch
// outcomes, scraped by external monitoring systems.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the prometheus collectors for fxmq dispatch
// outcomes.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	dispatchedTotal     *prometheus.CounterVec
	succeededTotal      *prometheus.CounterVec
	failedTotal         *prometheus.CounterVec
	deadTotal           *prometheus.CounterVec
	missingRescuedTotal *prometheus.CounterVec

	dispatchLeaseSeconds *prometheus.HistogramVec
}

// defaultBuckets covers dispatch lease durations from sub-second handlers
// up to the default 5-minute invoke timeout.
var defaultBuckets = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem under
// namespace. Calling it more than once replaces the previous registry.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		dispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatched_total",
				Help:      "Total number of messages dispatched to a handler",
			},
			[]string{"name"},
		),

		succeededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "succeeded_total",
				Help:      "Total number of messages reported succeeded",
			},
			[]string{"name"},
		),

		failedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "failed_total",
				Help:      "Total number of handler invocations that returned an error (retryable or dead)",
			},
			[]string{"name"},
		),

		deadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dead_total",
				Help:      "Total number of messages reported dead after exhausting retries",
			},
			[]string{"name"},
		),

		missingRescuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missing_rescued_total",
				Help:      "Total number of messages rescued from an expired lease",
			},
			[]string{"name"},
		),

		dispatchLeaseSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_lease_seconds",
				Help:      "Wall-clock time a handler held a message's lease",
				Buckets:   buckets,
			},
			[]string{"name"},
		),
	}

	registry.MustRegister(
		pm.dispatchedTotal,
		pm.succeededTotal,
		pm.failedTotal,
		pm.deadTotal,
		pm.missingRescuedTotal,
		pm.dispatchLeaseSeconds,
	)

	promMetrics = pm
}

// RecordDispatched increments the dispatched counter for name.
func RecordDispatched(name string) {
	if promMetrics == nil {
		return
	}
	promMetrics.dispatchedTotal.WithLabelValues(name).Inc()
}

// RecordSucceeded increments the succeeded counter and observes the lease
// duration for name.
func RecordSucceeded(name string, leaseSeconds float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.succeededTotal.WithLabelValues(name).Inc()
	promMetrics.dispatchLeaseSeconds.WithLabelValues(name).Observe(leaseSeconds)
}

// RecordFailed increments the failed counter and observes the lease
// duration for name. dead additionally increments the dead counter.
func RecordFailed(name string, leaseSeconds float64, dead bool) {
	if promMetrics == nil {
		return
	}
	promMetrics.failedTotal.WithLabelValues(name).Inc()
	promMetrics.dispatchLeaseSeconds.WithLabelValues(name).Observe(leaseSeconds)
	if dead {
		promMetrics.deadTotal.WithLabelValues(name).Inc()
	}
}

// RecordMissingRescued increments the missing-rescued counter for name.
func RecordMissingRescued(name string) {
	if promMetrics == nil {
		return
	}
	promMetrics.missingRescuedTotal.WithLabelValues(name).Inc()
}

// PrometheusHandler returns an http.Handler that serves the registry in
// the Prometheus exposition format.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry, for registering
// custom collectors, or nil if InitPrometheus has not been called.
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
