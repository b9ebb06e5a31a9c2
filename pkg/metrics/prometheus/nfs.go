// Package prometheus implements the pkg/metrics interfaces with Prometheus
// collectors registered on metrics.GetRegistry().
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/yak/pkg/metrics"
)

// connectionMetrics implements metrics.ConnectionMetrics for one server kind.
type connectionMetrics struct {
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
}

func newConnectionMetrics(reg prometheus.Registerer, subsystem string) connectionMetrics {
	return connectionMetrics{
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "yak",
			Subsystem: subsystem,
			Name:      "active_connections",
			Help:      "Current number of active connections",
		}),
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "yak",
			Subsystem: subsystem,
			Name:      "connections_accepted_total",
			Help:      "Total number of connections accepted",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "yak",
			Subsystem: subsystem,
			Name:      "connections_closed_total",
			Help:      "Total number of connections closed",
		}),
		connectionsForceClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "yak",
			Subsystem: subsystem,
			Name:      "connections_force_closed_total",
			Help:      "Total number of connections force-closed after the shutdown timeout",
		}),
	}
}

func (m *connectionMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *connectionMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *connectionMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *connectionMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

// nfsMetrics is the Prometheus implementation of metrics.NFSMetrics. One
// instance is shared by every mount; the workspace is a label.
type nfsMetrics struct {
	connectionMetrics
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesTransferred *prometheus.CounterVec
}

// NewNFSMetrics returns a Prometheus-backed NFSMetrics, or a no-op when
// metrics are disabled.
func NewNFSMetrics() metrics.NFSMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopNFSMetrics()
	}
	reg := metrics.GetRegistry()

	return &nfsMetrics{
		connectionMetrics: newConnectionMetrics(reg, "nfs"),
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "yak_nfs_requests_total",
				Help: "Total number of NFS requests by procedure, workspace and status",
			},
			[]string{"procedure", "workspace", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "yak_nfs_request_duration_milliseconds",
				Help: "Duration of NFS requests in milliseconds",
				Buckets: []float64{
					0.1,  // 100us
					1,    // 1ms
					10,   // 10ms
					100,  // 100ms
					1000, // 1s
				},
			},
			[]string{"procedure", "workspace"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "yak_nfs_requests_in_flight",
				Help: "Current number of NFS requests being processed",
			},
			[]string{"procedure", "workspace"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "yak_nfs_bytes_transferred_total",
				Help: "Total bytes of READ and WRITE traffic",
			},
			[]string{"procedure", "workspace", "direction"},
		),
	}
}

func (m *nfsMetrics) RecordRequest(procedure, workspace string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(procedure, workspace, status).Inc()
	m.requestDuration.WithLabelValues(procedure, workspace).Observe(duration.Seconds() * 1000)
}

func (m *nfsMetrics) RecordRequestStart(procedure, workspace string) {
	m.requestsInFlight.WithLabelValues(procedure, workspace).Inc()
}

func (m *nfsMetrics) RecordRequestEnd(procedure, workspace string) {
	m.requestsInFlight.WithLabelValues(procedure, workspace).Dec()
}

func (m *nfsMetrics) RecordBytesTransferred(procedure, workspace, direction string, bytes uint64) {
	m.bytesTransferred.WithLabelValues(procedure, workspace, direction).Add(float64(bytes))
}
