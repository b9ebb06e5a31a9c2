package rpc

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yak/internal/protocol/rpc"
	"github.com/marmos91/yak/internal/protocol/yak"
	"github.com/marmos91/yak/internal/ratelimiter"
	"github.com/marmos91/yak/pkg/adapter"
	"github.com/marmos91/yak/pkg/metrics"
	"github.com/marmos91/yak/pkg/mount"
	"github.com/marmos91/yak/pkg/registry"
	"github.com/marmos91/yak/pkg/service"
	"github.com/marmos91/yak/pkg/store/memory"
	"github.com/marmos91/yak/pkg/vfs"
	"github.com/marmos91/yak/pkg/vfs/workingcopy"
)

// noMounts refuses every bind.
type noMounts struct{}

func (noMounts) Bind(_ context.Context, workspace string, _ vfs.FileSystem) (mount.Mount, error) {
	return mount.Mount{}, &mount.BindError{Workspace: workspace, Attempts: 1, Err: assert.AnError}
}
func (noMounts) Unbind(context.Context, string) error { return mount.ErrNotMounted }
func (noMounts) Get(context.Context, string) (mount.Mount, bool, error) {
	return mount.Mount{}, false, nil
}
func (noMounts) List(context.Context) ([]mount.Mount, error) { return nil, nil }

type recordingMetrics struct {
	metrics.RPCMetrics

	mu       sync.Mutex
	statuses map[string]string
}

func (m *recordingMetrics) RecordRequest(procedure string, _ time.Duration, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[procedure] = status
}

func (m *recordingMetrics) status(procedure string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[procedure]
}

func startAdapter(t *testing.T, limiter *ratelimiter.Limiter) (net.Conn, *recordingMetrics) {
	t.Helper()
	s := memory.NewMemoryObjectStore()
	svc := service.New(service.Config{Version: "test", Concurrency: 3}, s, registry.New(s, workingcopy.Options{}), noMounts{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	m := &recordingMetrics{RPCMetrics: metrics.NewNoopRPCMetrics(), statuses: map[string]string{}}
	a, err := New(adapter.ConnConfig{ShutdownTimeout: time.Second}, ln, svc, limiter, m)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, m
}

var xid uint32

func call(t *testing.T, conn net.Conn, prog, vers, proc uint32, args []byte) ([]byte, error) {
	t.Helper()
	xid++
	msg, err := rpc.MakeCall(xid, prog, vers, proc, rpc.OpaqueAuth{Flavor: rpc.AuthNull}, args)
	require.NoError(t, err)
	require.NoError(t, rpc.WriteRecord(conn, msg))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	record, err := rpc.ReadRecord(conn, rpc.MaxRecordSize)
	require.NoError(t, err)
	got, results, err := rpc.ReadReply(record)
	assert.Equal(t, xid, got)
	return results, err
}

func acceptStat(err error) uint32 {
	if ae, ok := err.(*rpc.AcceptError); ok {
		return ae.Stat
	}
	return 0
}

func TestRPCErrors(t *testing.T) {
	conn, _ := startAdapter(t, nil)

	tests := []struct {
		name       string
		prog, vers uint32
		proc       uint32
		args       []byte
		want       uint32
	}{
		{"WrongProgram", rpc.ProgramNFS, 3, 0, nil, rpc.RPCProgUnavail},
		{"WrongVersion", yak.Program, 2, 0, nil, rpc.RPCProgMismatch},
		{"UnknownProcedure", yak.Program, yak.Version, 99, nil, rpc.RPCProcUnavail},
		{"TruncatedArgs", yak.Program, yak.Version, yak.ProcReadFile, []byte{1, 2, 3}, rpc.RPCGarbageArgs},
		{"TrailingArgs", yak.Program, yak.Version, yak.ProcReadFile, make([]byte, 36), rpc.RPCGarbageArgs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, conn, tt.prog, tt.vers, tt.proc, tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.want, acceptStat(err))
		})
	}

	t.Run("ConnectionSurvives", func(t *testing.T) {
		results, err := call(t, conn, yak.Program, yak.Version, yak.ProcNull, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestStatusReplies(t *testing.T) {
	conn, m := startAdapter(t, nil)

	t.Run("Concurrency", func(t *testing.T) {
		results, err := call(t, conn, yak.Program, yak.Version, yak.ProcConcurrency, nil)
		require.NoError(t, err)
		var res yak.ConcurrencyResult
		require.NoError(t, yak.DecodeReply(results, &res))
		assert.Equal(t, uint32(3), res.MaxInFlight)
		assert.Equal(t, "OK", m.status("CONCURRENCY"))
	})

	t.Run("WriteThenRead", func(t *testing.T) {
		args, err := yak.Encode(&yak.File{Content: []byte("hello")})
		require.NoError(t, err)
		results, err := call(t, conn, yak.Program, yak.Version, yak.ProcWriteFile, args)
		require.NoError(t, err)
		var written yak.IDResult
		require.NoError(t, yak.DecodeReply(results, &written))

		args, err = yak.Encode(&yak.IDArgs{ID: written.ID})
		require.NoError(t, err)
		results, err = call(t, conn, yak.Program, yak.Version, yak.ProcReadFile, args)
		require.NoError(t, err)
		var f yak.File
		require.NoError(t, yak.DecodeReply(results, &f))
		assert.Equal(t, "hello", string(f.Content))
	})

	t.Run("NotFound", func(t *testing.T) {
		args, err := yak.Encode(&yak.IDArgs{ID: yak.ID{9}})
		require.NoError(t, err)
		results, err := call(t, conn, yak.Program, yak.Version, yak.ProcReadTree, args)
		require.NoError(t, err)

		err = yak.DecodeReply(results, &yak.Tree{})
		var se *yak.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, yak.StatusNotFound, se.Status)
		assert.NotEmpty(t, se.Message)
		assert.Equal(t, "NOT_FOUND", m.status("READ_TREE"))
	})

	t.Run("UnknownEntryKind", func(t *testing.T) {
		args, err := yak.Encode(&yak.Tree{Entries: []yak.TreeEntryMapping{{Name: "x", Entry: yak.TreeEntry{Kind: 42}}}})
		require.NoError(t, err)
		results, err := call(t, conn, yak.Program, yak.Version, yak.ProcWriteTree, args)
		require.NoError(t, err)

		var se *yak.StatusError
		require.ErrorAs(t, yak.DecodeReply(results, nil), &se)
		assert.Equal(t, yak.StatusInvalidArgument, se.Status)
	})

	t.Run("BindFailed", func(t *testing.T) {
		args, err := yak.Encode(&yak.InitializeArgs{Path: "/work/repo"})
		require.NoError(t, err)
		results, err := call(t, conn, yak.Program, yak.Version, yak.ProcInitialize, args)
		require.NoError(t, err)

		var se *yak.StatusError
		require.ErrorAs(t, yak.DecodeReply(results, nil), &se)
		assert.Equal(t, yak.StatusBindFailed, se.Status)
		assert.Equal(t, "BIND_FAILED", m.status("INITIALIZE"))
	})

	t.Run("GarbageArgsMetric", func(t *testing.T) {
		_, err := call(t, conn, yak.Program, yak.Version, yak.ProcSnapshot, []byte{0xff})
		require.Error(t, err)
		assert.Equal(t, "GARBAGE_ARGS", m.status("SNAPSHOT"))
	})
}

func TestDispatchTableCoversEveryProcedure(t *testing.T) {
	for proc := uint32(yak.ProcNull); proc <= yak.ProcUnmount; proc++ {
		info, ok := dispatchTable[proc]
		require.True(t, ok, "procedure %d", proc)
		assert.Equal(t, yak.ProcName(proc), info.Name)
	}
}

func TestRateLimitedCalls(t *testing.T) {
	conn, _ := startAdapter(t, ratelimiter.New(1000, 1))

	for range 3 {
		_, err := call(t, conn, yak.Program, yak.Version, yak.ProcNull, nil)
		require.NoError(t, err)
	}
}
