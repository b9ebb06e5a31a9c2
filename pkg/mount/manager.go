// Package mount owns the NFS servers of bound workspaces.
//
// Manager is an actor: one goroutine (Run) holds the mount table and
// executes typed commands one at a time. Callers block on each command's
// reply channel or on their own context. Servers run on goroutines of their
// own and report back when they exit.
package mount

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"net"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/pkg/metrics"
	"github.com/marmos91/yak/pkg/vfs"
)

type listenFunc func(ctx context.Context, network, address string) (net.Listener, error)

// Manager is the mount actor. Create it with NewManager and start it with
// Run before sending commands.
type Manager struct {
	config  Config
	factory ServerFactory
	metrics metrics.MountMetrics
	listen  listenFunc

	cmds chan command

	// closed is closed when Run returns.
	closed chan struct{}

	// mounts is only touched by the Run goroutine.
	mounts map[string]*entry
}

// entry is the actor's record of one workspace.
type entry struct {
	mount Mount

	server Server
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(config Config, factory ServerFactory, m metrics.MountMetrics) (*Manager, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid mount config: %w", err)
	}
	if factory == nil {
		return nil, errors.New("mount manager needs a server factory")
	}
	if m == nil {
		m = metrics.NewNoopMountMetrics()
	}

	var lc net.ListenConfig
	return &Manager{
		config:  config,
		factory: factory,
		metrics: m,
		listen:  lc.Listen,
		cmds:    make(chan command),
		closed:  make(chan struct{}),
		mounts:  make(map[string]*entry),
	}, nil
}

// ============================================================================
// Commands
// ============================================================================

type command interface {
	run(m *Manager)
}

type bindResult struct {
	mount Mount
	err   error
}

type bindCmd struct {
	ctx       context.Context
	workspace string
	fs        vfs.FileSystem
	reply     chan bindResult
}

type unbindCmd struct {
	ctx       context.Context
	workspace string
	reply     chan error
}

type listCmd struct {
	reply chan []Mount
}

// exitedCmd is sent by a server goroutine when Serve returns.
type exitedCmd struct {
	workspace string
	id        uuid.UUID
	err       error
}

type shutdownCmd struct {
	ctx   context.Context
	reply chan error
}

// send delivers cmd unless the actor is gone or ctx ends first.
func (m *Manager) send(ctx context.Context, cmd command) error {
	select {
	case m.cmds <- cmd:
		return nil
	case <-m.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for a reply. The actor always answers a command it received,
// so only ctx can cut the wait short.
func await[T any](ctx context.Context, reply <-chan T) (T, error) {
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Bind serves fs for workspace on a free port of the configured range and
// returns the mount. A workspace that is already served keeps its server.
func (m *Manager) Bind(ctx context.Context, workspace string, fs vfs.FileSystem) (Mount, error) {
	cmd := bindCmd{ctx: ctx, workspace: workspace, fs: fs, reply: make(chan bindResult, 1)}
	if err := m.send(ctx, cmd); err != nil {
		return Mount{}, err
	}
	res, err := await(ctx, cmd.reply)
	if err != nil {
		return Mount{}, err
	}
	return res.mount, res.err
}

// Unbind stops the server of workspace. It returns ErrNotMounted when no
// server runs.
func (m *Manager) Unbind(ctx context.Context, workspace string) error {
	cmd := unbindCmd{ctx: ctx, workspace: workspace, reply: make(chan error, 1)}
	if err := m.send(ctx, cmd); err != nil {
		return err
	}
	res, err := await(ctx, cmd.reply)
	if err != nil {
		return err
	}
	return res
}

// List returns every known mount sorted by workspace.
func (m *Manager) List(ctx context.Context) ([]Mount, error) {
	cmd := listCmd{reply: make(chan []Mount, 1)}
	if err := m.send(ctx, cmd); err != nil {
		return nil, err
	}
	return await(ctx, cmd.reply)
}

// Get returns the mount of workspace.
func (m *Manager) Get(ctx context.Context, workspace string) (Mount, bool, error) {
	mounts, err := m.List(ctx)
	if err != nil {
		return Mount{}, false, err
	}
	for _, mt := range mounts {
		if mt.Workspace == workspace {
			return mt, true, nil
		}
	}
	return Mount{}, false, nil
}

// Shutdown stops every server and ends Run. Servers still running when ctx
// ends are force-closed.
func (m *Manager) Shutdown(ctx context.Context) error {
	cmd := shutdownCmd{ctx: ctx, reply: make(chan error, 1)}
	if err := m.send(ctx, cmd); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	res, err := await(ctx, cmd.reply)
	if err != nil {
		return err
	}
	<-m.closed
	return res
}

// ============================================================================
// Actor loop
// ============================================================================

// Run executes commands until Shutdown is called or ctx is cancelled, in
// which case every server is stopped within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	defer close(m.closed)

	for {
		select {
		case cmd := <-m.cmds:
			if sc, ok := cmd.(shutdownCmd); ok {
				sc.reply <- m.stopAll(sc.ctx)
				return nil
			}
			cmd.run(m)

		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.Background(), m.config.ShutdownTimeout)
			err := m.stopAll(stopCtx)
			cancel()
			if err != nil {
				logger.Warn("mount servers did not stop cleanly", "error", err)
			}
			return ctx.Err()
		}
	}
}

func (c bindCmd) run(m *Manager) {
	mt, err := m.bind(c.ctx, c.workspace, c.fs)
	c.reply <- bindResult{mount: mt, err: err}
}

func (c unbindCmd) run(m *Manager) {
	e, ok := m.mounts[c.workspace]
	if !ok || e.mount.State != StateServed {
		c.reply <- fmt.Errorf("%w: %s", ErrNotMounted, c.workspace)
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, m.config.ShutdownTimeout)
	defer cancel()
	err := m.stop(ctx, e)
	e.mount.State = StateUnbound
	m.refreshGauge()
	logger.Info("workspace unmounted", "workspace", c.workspace, "port", e.mount.Port)
	c.reply <- err
}

func (c listCmd) run(m *Manager) {
	mounts := make([]Mount, 0, len(m.mounts))
	for _, ws := range slices.Sorted(maps.Keys(m.mounts)) {
		mounts = append(mounts, m.mounts[ws].mount)
	}
	c.reply <- mounts
}

func (c exitedCmd) run(m *Manager) {
	e, ok := m.mounts[c.workspace]
	if !ok || e.mount.ID != c.id || e.mount.State != StateServed {
		// Stopped by Unbind or replaced by a later Bind.
		return
	}
	logger.Warn("NFS server exited", "workspace", c.workspace, "port", e.mount.Port, "error", c.err)
	e.mount.State = StateUnbound
	e.server, e.cancel = nil, nil
	m.refreshGauge()
}

// shutdownCmd is handled directly by Run.
func (c shutdownCmd) run(*Manager) {}

func (m *Manager) refreshGauge() {
	served := 0
	for _, e := range m.mounts {
		if e.mount.State == StateServed {
			served++
		}
	}
	m.metrics.SetServedMounts(served)
}

// ============================================================================
// Binding
// ============================================================================

// bind opens a listener on a random free port and starts the server.
// Ports already tried by this call or held by a live mount are skipped.
func (m *Manager) bind(ctx context.Context, workspace string, fs vfs.FileSystem) (Mount, error) {
	e, ok := m.mounts[workspace]
	if ok && e.mount.State == StateServed {
		m.metrics.RecordBindResult("existing")
		return e.mount, nil
	}
	if !ok {
		e = &entry{}
		m.mounts[workspace] = e
	}
	e.mount = Mount{ID: uuid.New(), Workspace: workspace, Host: m.config.Host, State: StateBinding}

	ctx, cancel := context.WithTimeout(ctx, m.config.BindTimeout)
	defer cancel()

	listener, attempts, err := m.listenRandom(ctx)
	e.mount.Attempts = attempts
	if err != nil {
		return m.bindFailed(e, &BindError{Workspace: workspace, Attempts: attempts, Err: err})
	}

	server, err := m.factory(listener, workspace, fs)
	if err != nil {
		_ = listener.Close()
		return m.bindFailed(e, &BindError{Workspace: workspace, Attempts: attempts, Err: err})
	}

	e.mount.Port = listener.Addr().(*net.TCPAddr).Port
	e.mount.State = StateServed
	e.mount.BoundAt = time.Now()
	e.mount.LastError = ""
	m.start(e, server)

	m.metrics.RecordBindResult("served")
	m.refreshGauge()
	logger.Info("workspace mounted", "workspace", workspace, "endpoint", e.mount.Endpoint(),
		"mount_id", e.mount.ID, "attempts", attempts)
	return e.mount, nil
}

func (m *Manager) bindFailed(e *entry, err *BindError) (Mount, error) {
	e.mount.State = StateBindFailed
	e.mount.LastError = err.Error()
	m.metrics.RecordBindResult("failed")
	logger.Error("workspace bind failed", "workspace", err.Workspace, "attempts", err.Attempts, "error", err.Err)
	return e.mount, err
}

func (m *Manager) listenRandom(ctx context.Context) (net.Listener, int, error) {
	held := make(map[int]struct{})
	for _, e := range m.mounts {
		if e.mount.State == StateServed {
			held[e.mount.Port] = struct{}{}
		}
	}

	candidates := make([]int, 0, m.config.MaxPort-m.config.MinPort+1)
	for p := m.config.MinPort; p <= m.config.MaxPort; p++ {
		if _, ok := held[p]; !ok {
			candidates = append(candidates, p)
		}
	}

	attempts := 0
	lastErr := errors.New("no free port in range")
	for attempts < m.config.MaxBindAttempts && len(candidates) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, attempts, fmt.Errorf("%w (last: %v)", err, lastErr)
		}

		i := rand.IntN(len(candidates))
		port := candidates[i]
		candidates[i] = candidates[len(candidates)-1]
		candidates = candidates[:len(candidates)-1]

		attempts++
		m.metrics.RecordBindAttempt()
		addr := net.JoinHostPort(m.config.Host, strconv.Itoa(port))
		listener, err := m.listen(ctx, "tcp", addr)
		if err == nil {
			return listener, attempts, nil
		}
		if errors.Is(err, syscall.EADDRINUSE) {
			logger.Debug("port busy, retrying", "port", port, "attempt", attempts)
		} else {
			logger.Debug("listen failed, retrying", "addr", addr, "attempt", attempts, "error", err)
		}
		lastErr = err
	}
	return nil, attempts, lastErr
}

// ============================================================================
// Server goroutines
// ============================================================================

func (m *Manager) start(e *entry, server Server) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.server, e.cancel, e.done = server, cancel, done

	workspace, id := e.mount.Workspace, e.mount.ID
	go func() {
		err := server.Serve(ctx)
		close(done)
		if ctx.Err() != nil {
			return
		}
		select {
		case m.cmds <- exitedCmd{workspace: workspace, id: id, err: err}:
		case <-m.closed:
		}
	}()
}

// stop cancels e's server and waits for it within ctx, force-closing its
// connections when ctx ends first.
func (m *Manager) stop(ctx context.Context, e *entry) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	err := e.server.Stop(ctx)

	select {
	case <-e.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	e.server, e.cancel = nil, nil
	if err != nil {
		return fmt.Errorf("stop server of %s: %w", e.mount.Workspace, err)
	}
	return nil
}

func (m *Manager) stopAll(ctx context.Context) error {
	var errs []error
	for _, ws := range slices.Sorted(maps.Keys(m.mounts)) {
		e := m.mounts[ws]
		if e.mount.State != StateServed {
			continue
		}
		if err := m.stop(ctx, e); err != nil {
			errs = append(errs, err)
		}
		e.mount.State = StateUnbound
	}
	m.refreshGauge()
	return errors.Join(errs...)
}
