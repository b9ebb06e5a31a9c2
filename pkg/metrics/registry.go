// Package metrics defines the metrics interfaces of the daemon's components
// and the HTTP status server that exposes them.
//
// All metrics are optional. Components take an interface and fall back to a
// no-op implementation, so the daemon runs the same with or without
// collection. The Prometheus implementations live in pkg/metrics/prometheus.
//
// Usage:
//
//	metrics.InitRegistry()
//	nfsMetrics := prometheus.NewNFSMetrics()
//	adapter := nfs.New(cfg, listener, workspace, fs, nfsMetrics)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry and read afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide Prometheus registry. Later calls
// are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry was called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
