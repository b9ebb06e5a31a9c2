package config

import (
	"github.com/marmos91/yak/internal/ratelimiter"
	"github.com/marmos91/yak/pkg/adapter"
	"github.com/marmos91/yak/pkg/mount"
)

// ConnConfig returns the connection limits of the protocol service.
func (c *RPCConfig) ConnConfig() adapter.ConnConfig {
	return adapter.ConnConfig{
		MaxConnections:  c.MaxConnections,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		IdleTimeout:     c.IdleTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

// Limiter returns the configured rate limiter, nil when disabled.
func (c *RPCConfig) Limiter() *ratelimiter.Limiter {
	return ratelimiter.New(c.RateLimit.RequestsPerSecond, c.RateLimit.Burst)
}

// ConnConfig returns the connection limits of each mount's NFS server.
func (c *NFSConfig) ConnConfig() adapter.ConnConfig {
	return adapter.ConnConfig{
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		IdleTimeout:     c.IdleTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

// MountConfig returns the mount actor's port policy.
func (c *NFSConfig) MountConfig() mount.Config {
	return mount.Config{
		Host:            c.Host,
		MinPort:         c.MinPort,
		MaxPort:         c.MaxPort,
		MaxBindAttempts: c.MaxBindAttempts,
		BindTimeout:     c.BindTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}
