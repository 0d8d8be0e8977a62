package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the request pipeline.
type Metrics struct {
	requestsTotal           *prometheus.CounterVec
	validationFailuresTotal *prometheus.CounterVec
	registerer              prometheus.Registerer
}

// NewMetrics creates a Metrics instance registered with the default
// registerer so it is exposed on the standard /metrics endpoint.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a Metrics instance with a custom
// registerer. Tests use a private registry.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "tenantgate"
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{registerer: registerer}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Total number of pipeline requests by route and outcome",
		},
		[]string{"route", "outcome"},
	)

	m.validationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "validation_failures_total",
			Help:      "Total number of rejected request bodies by route and failure kind",
		},
		[]string{"route", "kind"},
	)

	// Register with the provided registerer, ignoring duplicates: the
	// descriptors are identical when re-registered (e.g., in tests).
	for _, c := range []prometheus.Collector{
		m.requestsTotal, m.validationFailuresTotal,
	} {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordRequest records the outcome of a pipeline pass for a route.
func (m *Metrics) RecordRequest(route, outcome string) {
	m.requestsTotal.WithLabelValues(route, outcome).Inc()
}

// RecordValidationFailure records a rejected request body.
func (m *Metrics) RecordValidationFailure(route, kind string) {
	m.validationFailuresTotal.WithLabelValues(route, kind).Inc()
}
