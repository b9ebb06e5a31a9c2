package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"LowercaseLevel", func(c *Config) { c.Logging.Level = "warn" }, ""},
		{"BadLevel", func(c *Config) { c.Logging.Level = "LOUD" }, "Level"},
		{"BadFormat", func(c *Config) { c.Logging.Format = "xml" }, "Format"},
		{"BadAddr", func(c *Config) { c.RPC.Addr = "no-port" }, "rpc.addr"},
		{"IPv6Addr", func(c *Config) { c.RPC.Addr = "[::1]:0" }, ""},
		{"ZeroConcurrency", func(c *Config) { c.RPC.Concurrency = 0 }, "Concurrency"},
		{"BadHost", func(c *Config) { c.NFS.Host = "localhost" }, "Host"},
		{"PortOutOfRange", func(c *Config) { c.NFS.MaxPort = 70000 }, "MaxPort"},
		{"InvertedRange", func(c *Config) { c.NFS.MinPort, c.NFS.MaxPort = 1200, 1100 }, "min_port"},
		{"ZeroAttempts", func(c *Config) { c.NFS.MaxBindAttempts = 0 }, "MaxBindAttempts"},
		{"UnknownStore", func(c *Config) { c.Store.Type = "s3" }, "Type"},
		{"BadBadgerOptions", func(c *Config) {
			c.Store.Type = "badger"
			c.Store.Badger["block_cache_mb"] = "lots"
		}, "store.badger"},
		{"BurstWithoutRate", func(c *Config) { c.RPC.RateLimit.Burst = 5 }, "rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
