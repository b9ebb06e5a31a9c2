package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/marmos91/yak/pkg/config"
	"github.com/marmos91/yak/pkg/server"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgFile = ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func startServer(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	if port > 65535-16 {
		port = 65535 - 16
	}

	cfg := config.GetDefaultConfig()
	cfg.RPC.Addr = "127.0.0.1:0"
	cfg.NFS.MinPort, cfg.NFS.MaxPort = port, port+15

	srv, err := server.New(context.Background(), cfg, "test", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return srv.Addr().String()
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range GetRootCmd().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "status", "init", "config", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "yakd "+Version)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yak", "config.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.GetDefaultConfig().RPC.Addr, cfg.RPC.Addr)

	_, err = execute(t, "config", "init", "--config", path)
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, os.WriteFile(path, []byte("logging: {level: DEBUG}\n"), 0o644))
	_, err = execute(t, "config", "init", "--config", path, "--force")
	require.NoError(t, err)
	configInitForce = false
}

func TestInitAndStatus(t *testing.T) {
	addr := startServer(t)
	workspace := t.TempDir()

	out, err := execute(t, "init", "--addr", addr, workspace)
	require.NoError(t, err)
	assert.Contains(t, out, "Workspace: "+workspace)
	assert.Contains(t, out, "Endpoint:  127.0.0.1:")

	out, err = execute(t, "status", "--addr", addr, "--output", "json")
	require.NoError(t, err)
	var st DaemonStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, "test", st.Version)
	assert.Equal(t, uint32(1), st.Workspaces)
	require.Len(t, st.Mounts, 1)
	assert.Equal(t, workspace, st.Mounts[0].Workspace)
	statusOutput = "table"

	t.Run("DaemonDown", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		dead := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = execute(t, "status", "--addr", dead)
		assert.ErrorContains(t, err, "not reachable")
	})
}

func TestPrintStatus(t *testing.T) {
	st := newDaemonStatus(&yak.DaemonStatusResult{
		Version:       "1.2.3",
		UptimeSeconds: 90,
		Files:         3,
		Trees:         2,
		Workspaces:    2,
		Mounts: []yak.MountInfo{
			{Workspace: "/w", MountID: "m-1", Host: "::1", Port: 1100, State: "served"},
			{Workspace: "/x", State: "unbound"},
		},
	})
	assert.Equal(t, "1m30s", st.Uptime)
	assert.Equal(t, "[::1]:1100", st.Mounts[0].Endpoint)
	assert.Empty(t, st.Mounts[1].Endpoint)

	var buf bytes.Buffer
	require.NoError(t, printStatus(&buf, "table", st))
	assert.Contains(t, buf.String(), "3 files, 0 symlinks, 2 trees, 0 commits")
	assert.Contains(t, buf.String(), "m-1")

	buf.Reset()
	require.NoError(t, printStatus(&buf, "yaml", st))
	assert.Contains(t, buf.String(), "mount_id: m-1")

	assert.Error(t, printStatus(&buf, "xml", st))
}
