package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for identity resolution.
type Metrics struct {
	resolutionsTotal   *prometheus.CounterVec
	resolutionDuration *prometheus.HistogramVec
	failuresTotal      *prometheus.CounterVec
	registerer         prometheus.Registerer
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

	m.resolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolutions_total",
			Help:      "Total number of identity resolutions",
		},
		[]string{"channel", "status"},
	)

	m.resolutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolution_duration_seconds",
			Help:      "Identity resolution duration in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"channel"},
	)

	m.failuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "failures_total",
			Help:      "Total number of rejected credentials by channel and reason",
		},
		[]string{"channel", "reason"},
	)

	// Register with the provided registerer, ignoring duplicates: the
	// descriptors are identical when re-registered (e.g., in tests).
	for _, c := range []prometheus.Collector{
		m.resolutionsTotal, m.resolutionDuration, m.failuresTotal,
	} {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordResolution records a resolution outcome.
func (m *Metrics) RecordResolution(channel, status string, duration time.Duration) {
	m.resolutionsTotal.WithLabelValues(channel, status).Inc()
	m.resolutionDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordFailure records a rejected credential.
func (m *Metrics) RecordFailure(channel, reason string) {
	m.failuresTotal.WithLabelValues(channel, reason).Inc()
}
