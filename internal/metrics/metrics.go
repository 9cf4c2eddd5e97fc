// Package metrics holds the Prometheus collectors for the payment service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "payments"

// Metrics groups all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	Failures        *prometheus.CounterVec
	Replays         *prometheus.CounterVec
	PublishFailures prometheus.Counter
	HTTPDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Payment state transitions committed, by operation and resulting status.",
		}, []string{"operation", "status"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Payment operations rejected, by operation and error code.",
		}, []string{"operation", "code"}),
		Replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotent_replays_total",
			Help:      "Operations answered from an existing record without a transition.",
		}, []string{"operation"}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Lifecycle events that could not be published.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.Transitions, m.Failures, m.Replays, m.PublishFailures, m.HTTPDuration)
	return m
}

// Transition records a committed state change.
func (m *Metrics) Transition(operation, status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(operation, status).Inc()
}

// Failure records a rejected operation.
func (m *Metrics) Failure(operation, code string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(operation, code).Inc()
}

// Replay records an idempotent short-circuit.
func (m *Metrics) Replay(operation string) {
	if m == nil {
		return
	}
	m.Replays.WithLabelValues(operation).Inc()
}

// PublishFailure records a lifecycle event that was dropped.
func (m *Metrics) PublishFailure() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
