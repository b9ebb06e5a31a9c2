package mount

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/yak/pkg/vfs"
)

// fakeServer accepts nothing and runs until cancelled, or until exit is
// closed.
type fakeServer struct {
	listener net.Listener
	exit     chan struct{}
	stopped  atomic.Bool
}

func (s *fakeServer) Serve(ctx context.Context) error {
	defer s.listener.Close()
	select {
	case <-ctx.Done():
		return nil
	case <-s.exit:
		return errors.New("listener lost")
	}
}

func (s *fakeServer) Stop(context.Context) error {
	s.stopped.Store(true)
	return nil
}

type fakeFactory struct {
	mu      sync.Mutex
	servers map[string][]*fakeServer
}

func (f *fakeFactory) build(listener net.Listener, workspace string, _ vfs.FileSystem) (Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.servers == nil {
		f.servers = map[string][]*fakeServer{}
	}
	s := &fakeServer{listener: listener, exit: make(chan struct{})}
	f.servers[workspace] = append(f.servers[workspace], s)
	return s, nil
}

func (f *fakeFactory) built(workspace string) []*fakeServer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.servers[workspace]
}

type countingMetrics struct {
	attempts atomic.Int32
	mu       sync.Mutex
	results  map[string]int
	served   atomic.Int32
}

func (m *countingMetrics) RecordBindAttempt() { m.attempts.Add(1) }

func (m *countingMetrics) RecordBindResult(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results == nil {
		m.results = map[string]int{}
	}
	m.results[result]++
}

func (m *countingMetrics) SetServedMounts(count int) { m.served.Store(int32(count)) }

// freeRange returns a small port range starting at a port that was free a
// moment ago.
func freeRange(t *testing.T, size int) (int, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	if port+size > 65535 {
		port = 65535 - size
	}
	return port, port + size - 1
}

func startManager(t *testing.T, cfg Config, m *countingMetrics) (*Manager, *fakeFactory) {
	t.Helper()
	if cfg.MinPort == 0 {
		cfg.MinPort, cfg.MaxPort = freeRange(t, 64)
	}
	f := &fakeFactory{}
	if m == nil {
		m = &countingMetrics{}
	}
	mgr, err := NewManager(cfg, f.build, m)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- mgr.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
		<-done
	})
	return mgr, f
}

func TestNewManagerValidation(t *testing.T) {
	factory := (&fakeFactory{}).build
	tests := []struct {
		name string
		cfg  Config
	}{
		{"NoRange", Config{}},
		{"Inverted", Config{MinPort: 2000, MaxPort: 1000}},
		{"TooHigh", Config{MinPort: 1000, MaxPort: 70000}},
		{"NegativeAttempts", Config{MinPort: 1000, MaxPort: 1001, MaxBindAttempts: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewManager(tt.cfg, factory, nil)
			assert.Error(t, err)
		})
	}

	_, err := NewManager(Config{MinPort: 1000, MaxPort: 1000}, nil, nil)
	assert.Error(t, err)

	mgr, err := NewManager(Config{MinPort: 1000, MaxPort: 1000}, factory, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", mgr.config.Host)
	assert.Equal(t, 16, mgr.config.MaxBindAttempts)
}

func TestBindServes(t *testing.T) {
	m := &countingMetrics{}
	mgr, f := startManager(t, Config{}, m)
	ctx := context.Background()

	mt, err := mgr.Bind(ctx, "/work/a", nil)
	require.NoError(t, err)
	assert.Equal(t, StateServed, mt.State)
	assert.Equal(t, "/work/a", mt.Workspace)
	assert.GreaterOrEqual(t, mt.Port, mgr.config.MinPort)
	assert.LessOrEqual(t, mt.Port, mgr.config.MaxPort)
	assert.False(t, mt.BoundAt.IsZero())
	assert.NotEqual(t, [16]byte{}, [16]byte(mt.ID))

	// The port is really held by the server's listener.
	_, err = net.Listen("tcp", mt.Endpoint())
	assert.Error(t, err)

	t.Run("ExactlyOncePerWorkspace", func(t *testing.T) {
		again, err := mgr.Bind(ctx, "/work/a", nil)
		require.NoError(t, err)
		assert.Equal(t, mt, again)
		assert.Len(t, f.built("/work/a"), 1)

		m.mu.Lock()
		assert.Equal(t, 1, m.results["served"])
		assert.Equal(t, 1, m.results["existing"])
		m.mu.Unlock()
		assert.Equal(t, int32(1), m.served.Load())
	})
}

func TestConcurrentBindsGetDistinctPorts(t *testing.T) {
	mgr, _ := startManager(t, Config{}, nil)

	const n = 8
	var wg sync.WaitGroup
	mounts := make([]Mount, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mounts[i], errs[i] = mgr.Bind(context.Background(), fmt.Sprintf("/work/%d", i), nil)
		}()
	}
	wg.Wait()

	ports := map[int]bool{}
	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, StateServed, mounts[i].State)
		assert.False(t, ports[mounts[i].Port], "port %d handed out twice", mounts[i].Port)
		ports[mounts[i].Port] = true
	}

	list, err := mgr.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, n)
	assert.Equal(t, "/work/0", list[0].Workspace)
}

func TestBindRetriesOnCollision(t *testing.T) {
	m := &countingMetrics{}
	mgr, _ := startManager(t, Config{}, m)

	var calls atomic.Int32
	listen := mgr.listen
	mgr.listen = func(ctx context.Context, network, address string) (net.Listener, error) {
		if calls.Add(1) <= 2 {
			return nil, &net.OpError{Op: "listen", Net: network, Err: syscall.EADDRINUSE}
		}
		return listen(ctx, network, address)
	}

	mt, err := mgr.Bind(context.Background(), "/work/retry", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, mt.Attempts)
	assert.Equal(t, int32(3), m.attempts.Load())
}

func TestBindFailure(t *testing.T) {
	t.Run("AttemptsExhausted", func(t *testing.T) {
		m := &countingMetrics{}
		mgr, _ := startManager(t, Config{MaxBindAttempts: 4}, m)
		mgr.listen = func(context.Context, string, string) (net.Listener, error) {
			return nil, &net.OpError{Op: "listen", Net: "tcp", Err: syscall.EADDRINUSE}
		}

		mt, err := mgr.Bind(context.Background(), "/work/busy", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBindFailed)
		var be *BindError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, 4, be.Attempts)
		assert.Equal(t, StateBindFailed, mt.State)
		assert.NotEmpty(t, mt.LastError)

		m.mu.Lock()
		assert.Equal(t, 1, m.results["failed"])
		m.mu.Unlock()

		// A later Bind starts a fresh attempt.
		mgr.listen = (&net.ListenConfig{}).Listen
		mt, err = mgr.Bind(context.Background(), "/work/busy", nil)
		require.NoError(t, err)
		assert.Equal(t, StateServed, mt.State)
	})

	t.Run("RangeExhausted", func(t *testing.T) {
		occupied, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer occupied.Close()
		port := occupied.Addr().(*net.TCPAddr).Port

		mgr, _ := startManager(t, Config{MinPort: port, MaxPort: port}, nil)
		_, err = mgr.Bind(context.Background(), "/work/one", nil)
		var be *BindError
		require.ErrorAs(t, err, &be)
		assert.Equal(t, 1, be.Attempts)
	})

	t.Run("Timeout", func(t *testing.T) {
		mgr, _ := startManager(t, Config{BindTimeout: 50 * time.Millisecond}, nil)
		mgr.listen = func(ctx context.Context, _, _ string) (net.Listener, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		_, err := mgr.Bind(context.Background(), "/work/slow", nil)
		assert.ErrorIs(t, err, ErrBindFailed)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestUnbind(t *testing.T) {
	mgr, f := startManager(t, Config{}, nil)
	ctx := context.Background()

	first, err := mgr.Bind(ctx, "/work/u", nil)
	require.NoError(t, err)
	require.NoError(t, mgr.Unbind(ctx, "/work/u"))
	assert.True(t, f.built("/work/u")[0].stopped.Load())

	mt, ok, err := mgr.Get(ctx, "/work/u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateUnbound, mt.State)

	assert.ErrorIs(t, mgr.Unbind(ctx, "/work/u"), ErrNotMounted)
	assert.ErrorIs(t, mgr.Unbind(ctx, "/work/never"), ErrNotMounted)

	second, err := mgr.Bind(ctx, "/work/u", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, f.built("/work/u"), 2)
}

func TestServerExitReturnsToUnbound(t *testing.T) {
	m := &countingMetrics{}
	mgr, f := startManager(t, Config{}, m)
	ctx := context.Background()

	_, err := mgr.Bind(ctx, "/work/x", nil)
	require.NoError(t, err)
	close(f.built("/work/x")[0].exit)

	assert.Eventually(t, func() bool {
		mt, _, err := mgr.Get(ctx, "/work/x")
		return err == nil && mt.State == StateUnbound
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), m.served.Load())

	mt, err := mgr.Bind(ctx, "/work/x", nil)
	require.NoError(t, err)
	assert.Equal(t, StateServed, mt.State)
}

func TestShutdown(t *testing.T) {
	mgr, f := startManager(t, Config{}, nil)
	ctx := context.Background()

	for _, ws := range []string{"/work/a", "/work/b"} {
		_, err := mgr.Bind(ctx, ws, nil)
		require.NoError(t, err)
	}

	require.NoError(t, mgr.Shutdown(ctx))
	assert.True(t, f.built("/work/a")[0].stopped.Load())
	assert.True(t, f.built("/work/b")[0].stopped.Load())

	_, err := mgr.Bind(ctx, "/work/c", nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = mgr.List(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, mgr.Shutdown(ctx), "second Shutdown is a no-op")
}

func TestCallerContext(t *testing.T) {
	f := &fakeFactory{}
	mgr, err := NewManager(Config{MinPort: 1000, MaxPort: 1000}, f.build, nil)
	require.NoError(t, err)

	// Run was never started, so the command cannot be delivered.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = mgr.List(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "served", StateServed.String())
	text, err := StateBindFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "bind_failed", string(text))
	assert.Equal(t, "127.0.0.1:1100", Mount{Host: "127.0.0.1", Port: 1100}.Endpoint())
}
