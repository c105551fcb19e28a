// Package httpapi exposes the orchestrator over HTTP: health, metrics, and
// the thread lifecycle (list, status, invoke, cancel, resume). Grounded on
// the teacher's gateway.startHTTPServer/stopHTTPServer: a single
// http.ServeMux, a net.Listen'd *http.Server run in its own goroutine, and
// a context-bounded graceful Shutdown.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leolilley/ryeos/internal/orchestrator"
)

// Server is the HTTP surface over one *orchestrator.Orchestrator.
type Server struct {
	addr   string
	orch   *orchestrator.Orchestrator
	logger *slog.Logger

	httpServer   *http.Server
	httpListener net.Listener
}

// Config configures a Server.
type Config struct {
	Addr   string
	Orch   *orchestrator.Orchestrator
	Logger *slog.Logger
}

// New builds a Server. It does not start listening until Start is called.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: cfg.Addr, orch: cfg.Orch, logger: logger.With("component", "httpapi")}
}

// Handler returns the server's routed http.Handler, for tests that want to
// drive it with httptest.NewServer or httptest.NewRecorder without binding a
// real socket.
func (s *Server) Handler() http.Handler {
	return s.mux()
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("GET /v1/threads", s.handleListThreads)
	mux.HandleFunc("GET /v1/threads/{id}", s.handleThreadStatus)
	mux.HandleFunc("POST /v1/threads/invoke", s.handleInvoke)
	mux.HandleFunc("POST /v1/threads/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /v1/threads/{id}/resume", s.handleResume)
	return mux
}

// Start binds the listener and serves in a background goroutine. It
// returns once the listener is bound; Serve errors are logged, not
// returned, since they surface after Start has already returned (matching
// the teacher's startHTTPServer, which reports bind failures synchronously
// but Serve failures only to its logger).
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen: %w", err)
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpServer = server
	s.httpListener = listener

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	s.logger.Info("httpapi listening", "addr", s.addr)
	return nil
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	s.httpServer = nil
	s.httpListener = nil
	return nil
}
