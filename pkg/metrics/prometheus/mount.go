package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/yak/pkg/metrics"
)

type mountMetrics struct {
	bindAttempts prometheus.Counter
	bindResults  *prometheus.CounterVec
	servedMounts prometheus.Gauge
}

// NewMountMetrics returns a Prometheus-backed MountMetrics, or a no-op when
// metrics are disabled.
func NewMountMetrics() metrics.MountMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopMountMetrics()
	}
	reg := metrics.GetRegistry()

	return &mountMetrics{
		bindAttempts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "yak_mount_bind_attempts_total",
			Help: "Total number of listen attempts made while binding mounts",
		}),
		bindResults: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "yak_mount_bind_results_total",
			Help: "Total number of finished binds by result",
		}, []string{"result"}),
		servedMounts: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "yak_mount_served",
			Help: "Current number of workspaces with a running NFS server",
		}),
	}
}

func (m *mountMetrics) RecordBindAttempt() {
	m.bindAttempts.Inc()
}

func (m *mountMetrics) RecordBindResult(result string) {
	m.bindResults.WithLabelValues(result).Inc()
}

func (m *mountMetrics) SetServedMounts(count int) {
	m.servedMounts.Set(float64(count))
}
