package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MiddlewareMetrics holds Prometheus metrics for middleware
// operations.
type MiddlewareMetrics struct {
	rateLimitAllowed  *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec

	bodyLimitRejected prometheus.Counter

	panicsRecovered prometheus.Counter

	handlerDuration *prometheus.HistogramVec
	slowHandlers    *prometheus.CounterVec
	uniformDelays   *prometheus.CounterVec
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics
// instance.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = newMiddlewareMetrics()
	})
	return middlewareMetrics
}

func newMiddlewareMetrics() *MiddlewareMetrics {
	return &MiddlewareMetrics{
		rateLimitAllowed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Subsystem: "middleware",
				Name:      "rate_limit_allowed_total",
				Help:      "Total number of requests allowed by rate limiter",
			},
			[]string{"path"},
		),
		rateLimitRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Subsystem: "middleware",
				Name:      "rate_limit_rejected_total",
				Help:      "Total number of requests rejected by rate limiter",
			},
			[]string{"path"},
		),
		bodyLimitRejected: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Subsystem: "middleware",
				Name:      "body_limit_rejected_total",
				Help:      "Total number of requests rejected for oversized bodies",
			},
		),
		panicsRecovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Subsystem: "middleware",
				Name:      "panics_recovered_total",
				Help:      "Total number of panics recovered",
			},
		),
		handlerDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tenantgate",
				Subsystem: "middleware",
				Name:      "handler_duration_seconds",
				Help:      "Handler execution duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"handler"},
		),
		slowHandlers: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Subsystem: "middleware",
				Name:      "slow_handlers_total",
				Help:      "Total number of handler executions exceeding the slow threshold",
			},
			[]string{"handler"},
		),
		uniformDelays: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tenantgate",
				Subsystem: "middleware",
				Name:      "uniform_delays_total",
				Help:      "Total number of responses delayed for uniform answer time",
			},
			[]string{"handler"},
		),
	}
}
