package prometheus

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yak/pkg/metrics"
)

func TestCollectorsAreExported(t *testing.T) {
	metrics.InitRegistry()

	nfs := NewNFSMetrics()
	nfs.RecordRequestStart("GETATTR", "/work/repo")
	nfs.RecordRequest("GETATTR", "/work/repo", time.Millisecond, "NFS3_OK")
	nfs.RecordRequestEnd("GETATTR", "/work/repo")
	nfs.RecordConnectionAccepted()

	rpc := NewRPCMetrics()
	rpc.RecordRequest("WRITE_FILE", time.Millisecond, "OK")

	mounts := NewMountMetrics()
	mounts.RecordBindAttempt()
	mounts.RecordBindResult("served")
	mounts.SetServedMounts(1)

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"yak_nfs_requests_total",
		"yak_nfs_connections_accepted_total",
		"yak_rpc_requests_total",
		"yak_mount_bind_attempts_total",
		"yak_mount_served",
	} {
		assert.True(t, names[want], want)
	}

	t.Run("ServedOverHTTP", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		srv := metrics.NewServer(metrics.ServerConfig{}, nil)
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, listener) }()

		resp, err := http.Get("http://" + listener.Addr().String() + "/metrics")
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		require.NoError(t, err)
		assert.Contains(t, string(body), "yak_mount_served")

		cancel()
		assert.NoError(t, <-done)
	})
}
