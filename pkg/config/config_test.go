package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("MinimalFileGetsDefaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
		require.NoError(t, err)

		assert.Equal(t, "DEBUG", cfg.Logging.Level)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
		assert.Equal(t, "[::1]:4751", cfg.RPC.Addr)
		assert.Equal(t, 16, cfg.RPC.Concurrency)
		assert.Equal(t, 1100, cfg.NFS.MinPort)
		assert.Equal(t, 1200, cfg.NFS.MaxPort)
		assert.Equal(t, "memory", cfg.Store.Type)
		assert.False(t, cfg.Metrics.Enabled)
	})

	t.Run("FullFile", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
rpc:
  addr: "127.0.0.1:0"
  concurrency: 4
  read_timeout: 1m
  rate_limit:
    requests_per_second: 100
    burst: 200
nfs:
  min_port: 2000
  max_port: 2010
  bind_timeout: 2s
store:
  type: badger
  badger:
    block_cache_mb: 16
metrics:
  enabled: true
  port: 9191
`))
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:0", cfg.RPC.Addr)
		assert.Equal(t, 4, cfg.RPC.Concurrency)
		assert.Equal(t, time.Minute, cfg.RPC.ReadTimeout)
		assert.Equal(t, uint(100), cfg.RPC.RateLimit.RequestsPerSecond)
		assert.Equal(t, 2000, cfg.NFS.MinPort)
		assert.Equal(t, 2*time.Second, cfg.NFS.BindTimeout)
		assert.Equal(t, "badger", cfg.Store.Type)
		assert.EqualValues(t, 16, cfg.Store.Badger["block_cache_mb"])
		assert.EqualValues(t, 32, cfg.Store.Badger["index_cache_mb"])
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9191, cfg.Metrics.Port)
	})

	t.Run("NoConfigFile", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "INFO", cfg.Logging.Level)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("YAK_RPC_ADDR", "127.0.0.1:5000")
		t.Setenv("YAK_NFS_MAX_BIND_ATTEMPTS", "3")
		cfg, err := Load(writeConfig(t, "rpc:\n  concurrency: 2\n"))
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:5000", cfg.RPC.Addr)
		assert.Equal(t, 3, cfg.NFS.MaxBindAttempts)
		assert.Equal(t, 2, cfg.RPC.Concurrency)
	})

	t.Run("MalformedFile", func(t *testing.T) {
		_, err := Load(writeConfig(t, "rpc: [unclosed\n"))
		assert.Error(t, err)
	})

	t.Run("InvalidValues", func(t *testing.T) {
		_, err := Load(writeConfig(t, "store:\n  type: s3\n"))
		assert.ErrorContains(t, err, "Type")
	})
}

func TestConfigConversions(t *testing.T) {
	cfg := GetDefaultConfig()

	conn := cfg.RPC.ConnConfig()
	assert.Equal(t, cfg.RPC.ReadTimeout, conn.ReadTimeout)
	assert.Equal(t, cfg.RPC.ShutdownTimeout, conn.ShutdownTimeout)
	assert.Nil(t, cfg.RPC.Limiter())

	cfg.RPC.RateLimit.RequestsPerSecond = 10
	assert.NotNil(t, cfg.RPC.Limiter())

	mc := cfg.NFS.MountConfig()
	assert.Equal(t, "127.0.0.1", mc.Host)
	assert.Equal(t, 1100, mc.MinPort)
	assert.Equal(t, 16, mc.MaxBindAttempts)
	assert.Zero(t, cfg.NFS.ConnConfig().IdleTimeout)
}
