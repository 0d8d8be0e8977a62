package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// AlertSink receives notifications about handlers exceeding the
// execution threshold. Implementations must not block.
type AlertSink interface {
	Alert(ctx context.Context, handler string, elapsed time.Duration)
}

// Governor measures handler execution time, reports slow handlers and
// optionally pads response latency to a uniform minimum so the time a
// reply takes reveals nothing about the branch that produced it.
type Governor struct {
	threshold time.Duration
	guard     time.Duration
	logger    observability.Logger
	alerts    AlertSink
	sleep     func(ctx context.Context, d time.Duration)
}

// GovernorOption is a functional option for configuring the governor.
type GovernorOption func(*Governor)

// WithGovernorLogger sets the logger for the governor.
func WithGovernorLogger(logger observability.Logger) GovernorOption {
	return func(g *Governor) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGovernorAlertSink sets the sink receiving slow-handler alerts.
func WithGovernorAlertSink(sink AlertSink) GovernorOption {
	return func(g *Governor) {
		g.alerts = sink
	}
}

// withGovernorSleep replaces the delay function. Tests use this to
// avoid real sleeps.
func withGovernorSleep(sleep func(ctx context.Context, d time.Duration)) GovernorOption {
	return func(g *Governor) {
		g.sleep = sleep
	}
}

// NewGovernor creates a governor with the given slow-handler threshold
// and uniform answer time guard.
func NewGovernor(threshold, guard time.Duration, opts ...GovernorOption) *Governor {
	g := &Governor{
		threshold: threshold,
		guard:     guard,
		logger:    observability.NopLogger(),
		sleep:     contextSleep,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Measure returns a middleware that tracks execution time for the
// named handler. When uniform is set, responses faster than the guard
// are delayed up to it before completion.
func (g *Governor) Measure(handler string, uniform bool) func(http.Handler) http.Handler {
	return g.MeasureWithThreshold(handler, uniform, 0)
}

// MeasureWithThreshold is Measure with a per-handler slow threshold
// override. A zero threshold uses the governor's default.
func (g *Governor) MeasureWithThreshold(handler string, uniform bool, threshold time.Duration) func(http.Handler) http.Handler {
	if threshold <= 0 {
		threshold = g.threshold
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			elapsed := time.Since(start)
			GetMiddlewareMetrics().handlerDuration.WithLabelValues(handler).Observe(elapsed.Seconds())

			if elapsed > threshold {
				g.logger.Error("handler exceeded execution threshold",
					observability.String("handler", handler),
					observability.Duration("threshold", threshold),
					observability.Duration("elapsed", elapsed),
				)

				GetMiddlewareMetrics().slowHandlers.WithLabelValues(handler).Inc()

				if g.alerts != nil {
					g.alerts.Alert(r.Context(), handler, elapsed)
				}
			}

			if uniform {
				if remaining := g.guard - elapsed; remaining > 0 {
					GetMiddlewareMetrics().uniformDelays.WithLabelValues(handler).Inc()
					g.sleep(r.Context(), remaining)
				}
			}
		})
	}
}

func contextSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
