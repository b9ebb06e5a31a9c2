package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGenerateYAMLWithComments(t *testing.T) {
	content, err := GenerateYAMLWithComments(GetDefaultConfig())
	require.NoError(t, err)

	for _, want := range []string{
		"# yak daemon configuration",
		"logging:",
		"rpc:",
		"nfs:",
		"store:",
		"metrics:",
		"read_timeout: 5m0s",
		"# Per-workspace NFSv3 servers.",
	} {
		assert.Contains(t, content, want)
	}

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(content), &parsed))
	assert.Contains(t, parsed, "rpc")
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, InitConfigToPath(path, false))

	assert.ErrorContains(t, InitConfigToPath(path, false), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	require.NoError(t, InitConfigToPath(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	want := GetDefaultConfig()
	assert.Equal(t, want.RPC, cfg.RPC)
	assert.Equal(t, want.NFS, cfg.NFS)
	assert.Equal(t, 5*time.Second, cfg.NFS.BindTimeout)
	assert.Equal(t, want.Store.Type, cfg.Store.Type)
}

func TestInitConfigDefaultLocation(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "yak", "config.yaml"), path)
	assert.True(t, ConfigExists())

	_, err = InitConfig(false)
	assert.Error(t, err)
	_, err = InitConfig(true)
	assert.NoError(t, err)
}
