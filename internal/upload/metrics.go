package upload

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for chunked upload assembly.
type Metrics struct {
	chunksTotal     *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	rejectionsTotal *prometheus.CounterVec
	activeFlows     prometheus.Gauge
	registerer      prometheus.Registerer
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

	m.chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "chunks_total",
			Help:      "Total number of upload chunks accepted",
		},
		[]string{"tenant"},
	)

	m.bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "bytes_total",
			Help:      "Total number of upload bytes accepted",
		},
		[]string{"tenant"},
	)

	m.rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "rejections_total",
			Help:      "Total number of uploads rejected for exceeding the size ceiling",
		},
		[]string{"tenant"},
	)

	m.activeFlows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "active_flows",
			Help:      "Number of upload flows currently in progress",
		},
	)

	// Register with the provided registerer, ignoring duplicates: the
	// descriptors are identical when re-registered (e.g., in tests).
	for _, c := range []prometheus.Collector{
		m.chunksTotal, m.bytesTotal, m.rejectionsTotal, m.activeFlows,
	} {
		_ = m.registerer.Register(c)
	}

	return m
}

// RecordChunk records one accepted chunk and its byte count.
func (m *Metrics) RecordChunk(tenantID int64, bytes int64) {
	tenant := strconv.FormatInt(tenantID, 10)
	m.chunksTotal.WithLabelValues(tenant).Inc()
	m.bytesTotal.WithLabelValues(tenant).Add(float64(bytes))
}

// RecordRejection records an upload rejected by the size ceiling.
func (m *Metrics) RecordRejection(tenantID int64) {
	m.rejectionsTotal.WithLabelValues(strconv.FormatInt(tenantID, 10)).Inc()
}

// SetActiveFlows records the current number of in-progress flows.
func (m *Metrics) SetActiveFlows(n int) {
	m.activeFlows.Set(float64(n))
}
