// Package server wires the daemon together and runs it.
//
// New builds every component from configuration: the object store, the
// workspace registry, the mount actor with its NFS server factory, the
// protocol service and its RPC adapter, and the optional status server.
// Serve runs them until its context ends and then stops them in order:
// the protocol service first so no new workspaces appear, then the status
// server, then every mount, and the store last.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/yak/internal/logger"
	nfsadapter "github.com/marmos91/yak/pkg/adapter/nfs"
	rpcadapter "github.com/marmos91/yak/pkg/adapter/rpc"
	"github.com/marmos91/yak/pkg/config"
	"github.com/marmos91/yak/pkg/metrics"
	"github.com/marmos91/yak/pkg/mount"
	"github.com/marmos91/yak/pkg/registry"
	"github.com/marmos91/yak/pkg/service"
	"github.com/marmos91/yak/pkg/store"
	"github.com/marmos91/yak/pkg/vfs"
	"github.com/marmos91/yak/pkg/vfs/workingcopy"
)

// Server is one daemon instance.
type Server struct {
	cfg *config.Config

	store      store.ObjectStore
	workspaces *registry.Registry
	mounts     *mount.Manager
	service    *service.Service
	rpc        *rpcadapter.RPCAdapter
	status     *metrics.Server

	served atomic.Bool
}

// New builds a daemon from cfg. The protocol service listener is opened
// here, so Addr is valid before Serve. m may be nil when metrics are
// disabled.
func New(ctx context.Context, cfg *config.Config, version string, m *config.MetricsResult) (*Server, error) {
	if m == nil {
		m = &config.MetricsResult{
			RPC:   metrics.NewNoopRPCMetrics(),
			NFS:   metrics.NewNoopNFSMetrics(),
			Mount: metrics.NewNoopMountMetrics(),
		}
	}

	s, err := config.CreateStore(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:   cfg,
		store: s,
		workspaces: registry.New(s, workingcopy.Options{
			UID: cfg.NFS.UID,
			GID: cfg.NFS.GID,
		}),
	}

	nfsConn := cfg.NFS.ConnConfig()
	factory := func(listener net.Listener, workspace string, fs vfs.FileSystem) (mount.Server, error) {
		a, err := nfsadapter.New(nfsConn, listener, workspace, fs, m.NFS)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	srv.mounts, err = mount.NewManager(cfg.NFS.MountConfig(), factory, m.Mount)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	srv.service = service.New(service.Config{
		Version:     version,
		Concurrency: cfg.RPC.Concurrency,
	}, s, srv.workspaces, srv.mounts)

	listener, err := net.Listen("tcp", cfg.RPC.Addr)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("protocol service listen on %s: %w", cfg.RPC.Addr, err)
	}
	srv.rpc, err = rpcadapter.New(cfg.RPC.ConnConfig(), listener, srv.service, cfg.RPC.Limiter(), m.RPC)
	if err != nil {
		_ = listener.Close()
		_ = s.Close()
		return nil, err
	}

	if m.Enabled {
		srv.status = metrics.NewServer(metrics.ServerConfig{Port: m.Port}, func(ctx context.Context) (any, error) {
			return srv.mounts.List(ctx)
		})
	}
	return srv, nil
}

// Addr returns the protocol service address.
func (s *Server) Addr() net.Addr {
	return s.rpc.Addr()
}

// Service returns the protocol service the RPC adapter dispatches to.
func (s *Server) Service() *service.Service {
	return s.service
}

// componentError names the component that stopped the daemon.
type componentError struct {
	component string
	err       error
}

// Serve runs the daemon until ctx is cancelled or a component fails, then
// shuts everything down. It returns ctx's error on a requested shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if !s.served.CompareAndSwap(false, true) {
		return errors.New("server: Serve called twice")
	}

	// Mounts and the status server outlive ctx until their turn in the
	// shutdown order.
	mountCtx, cancelMounts := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelMounts()
	statusCtx, cancelStatus := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelStatus()

	errChan := make(chan componentError, 3)
	var wg sync.WaitGroup
	run := func(component string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				errChan <- componentError{component: component, err: err}
			}
		}()
	}

	mountsDone := make(chan struct{})
	run("mounts", func() error {
		defer close(mountsDone)
		return s.mounts.Run(mountCtx)
	})
	if s.status != nil {
		run("status server", func() error { return s.status.Start(statusCtx) })
	}
	rpcDone := make(chan struct{})
	run(s.rpc.Protocol(), func() error {
		defer close(rpcDone)
		return s.rpc.Serve(ctx)
	})

	logger.Info("Daemon started", "addr", s.Addr().String(), "store", s.cfg.Store.Type,
		"nfs_host", s.cfg.NFS.Host, "nfs_ports", fmt.Sprintf("%d-%d", s.cfg.NFS.MinPort, s.cfg.NFS.MaxPort))

	var result error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", "reason", context.Cause(ctx))
		result = ctx.Err()
	case ce := <-errChan:
		logger.Error("Component failed, shutting down", "component", ce.component, "error", ce.err)
		result = fmt.Errorf("%s: %w", ce.component, ce.err)
	}

	s.shutdown(rpcDone, cancelStatus)
	cancelMounts()
	<-mountsDone
	wg.Wait()

	if err := s.store.Close(); err != nil {
		logger.Warn("Closing object store failed", "error", err)
	}
	logger.Info("Daemon stopped")
	return result
}

// shutdown runs the ordered steps that precede closing the store. Each
// step gets its own timeout.
func (s *Server) shutdown(rpcDone <-chan struct{}, stopStatus context.CancelFunc) {
	timeout := s.cfg.Server.ShutdownTimeout

	s.step("protocol service", timeout, func(ctx context.Context) error {
		if err := s.rpc.Stop(ctx); err != nil {
			return err
		}
		select {
		case <-rpcDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	if s.status != nil {
		s.step("status server", timeout, func(ctx context.Context) error {
			stopStatus()
			return s.status.Stop(ctx)
		})
	}

	s.step("mounts", timeout, s.mounts.Shutdown)
}

func (s *Server) step(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		logger.Warn("Shutdown step failed", "step", name, "error", err)
		return
	}
	logger.Debug("Shutdown step done", "step", name, "duration", time.Since(start))
}
