package config

import (
	"github.com/marmos91/yak/pkg/metrics"
	promMetrics "github.com/marmos91/yak/pkg/metrics/prometheus"
)

// MetricsResult holds the collectors built from configuration. The
// collectors are never nil; they record nothing when metrics are disabled.
type MetricsResult struct {
	Enabled bool
	Port    int

	RPC   metrics.RPCMetrics
	NFS   metrics.NFSMetrics
	Mount metrics.MountMetrics
}

// InitializeMetrics registers the Prometheus collectors when metrics are
// enabled. It must be called once per process: collectors register on a
// global registry.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			RPC:   metrics.NewNoopRPCMetrics(),
			NFS:   metrics.NewNoopNFSMetrics(),
			Mount: metrics.NewNoopMountMetrics(),
		}
	}

	metrics.InitRegistry()
	return &MetricsResult{
		Enabled: true,
		Port:    cfg.Metrics.Port,
		RPC:     promMetrics.NewRPCMetrics(),
		NFS:     promMetrics.NewNFSMetrics(),
		Mount:   promMetrics.NewMountMetrics(),
	}
}
