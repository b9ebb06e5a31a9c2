package adapter

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/yak/internal/logger"
	"github.com/marmos91/yak/internal/protocol/rpc"
	"github.com/marmos91/yak/pkg/metrics"
)

// CallHandler answers one decoded RPC call.
//
// HandleCall returns the complete record-marked reply, or nil to send
// nothing. A non-nil error closes the connection.
type CallHandler interface {
	HandleCall(ctx context.Context, call *rpc.RPCCallMessage, args []byte, clientAddr string) ([]byte, error)
}

// RPCServer accepts TCP connections on a listener and serves ONC RPC calls
// on each of them with a CallHandler.
//
// Shutdown flow:
//  1. ctx cancelled or Stop called
//  2. listener closed, so no new connections
//  3. request context cancelled, so in-flight calls abort
//  4. wait for active connections, up to ShutdownTimeout
//  5. force-close whatever is left
type RPCServer struct {
	name     string
	config   ConnConfig
	listener net.Listener
	handler  CallHandler
	metrics  metrics.ConnectionMetrics

	// log carries the server's name and address on every line.
	log *logLine

	activeConns  sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
	connCount    atomic.Int32

	// connSemaphore is nil when MaxConnections is 0.
	connSemaphore chan struct{}

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for forced closure.
	activeConnections sync.Map
}

// NewRPCServer returns a server for listener. It does not accept until
// Serve is called. nil metrics records nothing.
func NewRPCServer(name string, config ConnConfig, listener net.Listener, handler CallHandler, m metrics.ConnectionMetrics) (*RPCServer, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", name, err)
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
	}
	if m == nil {
		m = metrics.NewNoopRPCMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &RPCServer{
		name:           name,
		config:         config,
		listener:       listener,
		handler:        handler,
		metrics:        m,
		log:            &logLine{name: name, addr: listener.Addr().String()},
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}, nil
}

// Serve accepts connections until ctx is cancelled or Stop is called.
func (s *RPCServer) Serve(ctx context.Context) error {
	logger.Info(s.name+" server listening", "addr", s.listener.Addr().String(),
		"max_connections", s.config.MaxConnections)

	go func() {
		select {
		case <-ctx.Done():
			s.log.debugf("shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// The listener is gone without a shutdown: report it so the
			// owner can react.
			s.initiateShutdown()
			if shutdownErr := s.gracefulShutdown(); shutdownErr != nil {
				return shutdownErr
			}
			return fmt.Errorf("%s accept: %w", s.name, err)
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(s.connCount.Load())
		s.log.debugf("connection accepted from %s (active: %d)", connAddr, s.connCount.Load())

		conn := newConn(s, tcpConn)
		go func(addr string) {
			defer func() {
				s.activeConnections.Delete(addr)
				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(s.connCount.Load())
				s.log.debugf("connection closed from %s (active: %d)", addr, s.connCount.Load())
			}()

			conn.serve(s.shutdownCtx)
		}(connAddr)
	}
}

func (s *RPCServer) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)
		if err := s.listener.Close(); err != nil {
			s.log.debugf("error closing listener: %v", err)
		}
		s.cancelRequests()
	})
}

func (s *RPCServer) gracefulShutdown() error {
	s.log.debugf("graceful shutdown: waiting for %d connection(s) (timeout: %v)",
		s.connCount.Load(), s.config.ShutdownTimeout)

	if s.waitConnections(time.After(s.config.ShutdownTimeout)) {
		s.log.debugf("graceful shutdown complete")
		return nil
	}

	remaining := s.connCount.Load()
	logger.Warn(s.name+" shutdown timeout exceeded, forcing closure",
		"addr", s.log.addr, "connections", remaining, "timeout", s.config.ShutdownTimeout)
	s.forceCloseConnections()
	return fmt.Errorf("%s shutdown timeout: %d connections force-closed", s.name, remaining)
}

// waitConnections reports whether every connection finished before timeout
// fired.
func (s *RPCServer) waitConnections(timeout <-chan time.Time) bool {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-timeout:
		return false
	}
}

func (s *RPCServer) forceCloseConnections() {
	s.activeConnections.Range(func(key, value any) bool {
		if err := value.(net.Conn).Close(); err != nil {
			s.log.debugf("error force-closing connection to %s: %v", key, err)
		} else {
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})
}

// Stop initiates shutdown and waits for active connections until ctx is
// done.
func (s *RPCServer) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.forceCloseConnections()
		return ctx.Err()
	}
}

// Done is closed once shutdown has started.
func (s *RPCServer) Done() <-chan struct{} {
	return s.shutdown
}

func (s *RPCServer) ActiveConnections() int32 {
	return s.connCount.Load()
}

// Addr returns the listener address.
func (s *RPCServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Port returns the TCP port of the listener, 0 for non-TCP listeners.
func (s *RPCServer) Port() int {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// logLine prefixes debug lines with the server identity.
type logLine struct {
	name string
	addr string
}

func (l *logLine) debugf(format string, args ...any) {
	logger.Debugf(l.name+" "+l.addr+": "+format, args...)
}
