package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yak/pkg/config"
	"github.com/marmos91/yak/pkg/mount"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.RPC.Addr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	port := freePort(t)
	if port > 65535-32 {
		port = 65535 - 32
	}
	cfg.NFS.MinPort, cfg.NFS.MaxPort = port, port+31
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) (*Server, func() error) {
	t.Helper()
	srv, err := New(context.Background(), cfg, "test", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	var stopped bool
	var result error
	stop := func() error {
		if stopped {
			return result
		}
		stopped = true
		cancel()
		select {
		case result = <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("server did not stop")
		}
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return srv, stop
}

func TestServeAndShutdown(t *testing.T) {
	srv, stop := startServer(t, testConfig(t))
	ctx := context.Background()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	_ = conn.Close()

	m, err := srv.Service().Initialize(ctx, "/work/repo")
	require.NoError(t, err)
	assert.Equal(t, mount.StateServed, m.State)
	endpoint := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	nfsConn, err := net.Dial("tcp", endpoint)
	require.NoError(t, err)
	_ = nfsConn.Close()

	err = stop()
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	_, err = net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	assert.Error(t, err, "protocol service still accepting")
	_, err = net.DialTimeout("tcp", endpoint, time.Second)
	assert.Error(t, err, "mount still accepting")
}

func TestServeTwice(t *testing.T) {
	srv, _ := startServer(t, testConfig(t))
	require.Eventually(t, srv.served.Load, time.Second, 10*time.Millisecond)
	assert.Error(t, srv.Serve(context.Background()))
}

func TestNewFailsOnBusyAddress(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.RPC.Addr = ln.Addr().String()
	_, err = New(context.Background(), cfg, "test", nil)
	assert.Error(t, err)
}

func TestBadgerStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Type = "badger"
	srv, stop := startServer(t, cfg)

	assert.False(t, srv.Service().EmptyTreeID().IsZero())

	st, err := srv.Service().DaemonStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", st.Version)
	assert.ErrorIs(t, stop(), context.Canceled)
}
