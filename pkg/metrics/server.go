package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/yak/internal/logger"
)

// MountsFunc reports the current mounts for GET /mounts. The value is
// encoded as JSON.
type MountsFunc func(ctx context.Context) (any, error)

// Server is the HTTP status server: /health, /mounts and /metrics.
type Server struct {
	server       *http.Server
	port         int
	started      time.Time
	mounts       MountsFunc
	listener     net.Listener
	shutdownOnce sync.Once
}

type ServerConfig struct {
	// Port to listen on. 0 picks a free port, which tests use.
	Port int
}

func NewServer(config ServerConfig, mounts MountsFunc) *Server {
	s := &Server{
		port:    config.Port,
		started: time.Now(),
		mounts:  mounts,
	}
	s.server = &http.Server{
		Handler:      s.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/mounts", s.listMounts)

	if IsEnabled() {
		r.Handle("/metrics", promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
	}
	return r
}

type statusResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"uptime_seconds": int64(time.Since(s.started).Seconds()),
		},
	})
}

func (s *Server) listMounts(w http.ResponseWriter, r *http.Request) {
	if s.mounts == nil {
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Timestamp: time.Now().UTC(), Data: []any{}})
		return
	}
	mounts, err := s.mounts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{
			Status:    "error",
			Timestamp: time.Now().UTC(),
			Error:     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Timestamp: time.Now().UTC(), Data: mounts})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("status request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// Start serves until ctx is cancelled, then shuts down within five seconds.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("metrics server listen on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Status server listening", "port", s.port)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Status server shutdown error", "error", err)
		} else {
			logger.Info("Status server stopped")
		}
	})
	return shutdownErr
}

func (s *Server) Port() int {
	return s.port
}
