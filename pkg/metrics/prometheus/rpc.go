package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/yak/pkg/metrics"
)

type rpcMetrics struct {
	connectionMetrics
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
}

// NewRPCMetrics returns a Prometheus-backed RPCMetrics, or a no-op when
// metrics are disabled.
func NewRPCMetrics() metrics.RPCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopRPCMetrics()
	}
	reg := metrics.GetRegistry()

	return &rpcMetrics{
		connectionMetrics: newConnectionMetrics(reg, "rpc"),
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "yak_rpc_requests_total",
				Help: "Total number of protocol service requests by procedure and status",
			},
			[]string{"procedure", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yak_rpc_request_duration_milliseconds",
				Help:    "Duration of protocol service requests in milliseconds",
				Buckets: []float64{0.1, 1, 10, 100, 1000},
			},
			[]string{"procedure"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "yak_rpc_requests_in_flight",
				Help: "Current number of protocol service requests being processed",
			},
			[]string{"procedure"},
		),
	}
}

func (m *rpcMetrics) RecordRequest(procedure string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(procedure, status).Inc()
	m.requestDuration.WithLabelValues(procedure).Observe(duration.Seconds() * 1000)
}

func (m *rpcMetrics) RecordRequestStart(procedure string) {
	m.requestsInFlight.WithLabelValues(procedure).Inc()
}

func (m *rpcMetrics) RecordRequestEnd(procedure string) {
	m.requestsInFlight.WithLabelValues(procedure).Dec()
}
