package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/connect/pkg/config"
	"mercator-hq/connect/pkg/proxy/middleware"
	"mercator-hq/connect/pkg/telemetry/health"
	"mercator-hq/connect/pkg/telemetry/metrics"
	"mercator-hq/connect/pkg/telemetry/tracing"
)

// Operational routes. They shadow upstream paths of the same name.
const (
	LivenessPath  = "/health"
	ReadinessPath = "/ready"
)

// Options contains the components mounted by the server.
type Options struct {
	// Resource serves every path that is not an operational route.
	Resource http.Handler

	// Health provides the liveness and readiness probes (optional).
	Health *health.Checker

	// Metrics exposes the Prometheus endpoint when enabled (optional).
	Metrics *metrics.Collector

	// MetricsPath is the metrics route. Default: "/metrics".
	MetricsPath string

	// Tracer opens a server span per request (optional).
	Tracer *tracing.Tracer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the inbound HTTP server of the proxy.
type Server struct {
	config       *config.ServerConfig
	opts         Options
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
	ready        chan struct{}
}

// NewServer creates a new proxy server.
func NewServer(cfg *config.ServerConfig, opts Options) *Server {
	if opts.Health == nil {
		opts.Health = health.New(0)
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = config.DefaultMetricsPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config: cfg,
		opts:   opts,
		logger: logger.With("component", "server"),
		ready:  make(chan struct{}),
	}
}

// Start listens on the configured address and serves until ctx is done or
// the listener fails. On ctx cancellation it shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}

	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.addr = ln.Addr()
	s.isRunning = true
	s.mu.Unlock()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting proxy server", "address", ln.Addr().String())

		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the configured shutdown timeout. Streams still running at the deadline
// are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx := ctx
		if s.config.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
			defer cancel()
		}

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			_ = s.httpServer.Close()
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("proxy server stopped")
	})

	return shutdownErr
}

// Handler returns the routed handler wrapped in the middleware chain:
// recovery, request id, tracing and access logging, outermost first.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle(LivenessPath, s.opts.Health.LivenessHandler())
	mux.Handle(ReadinessPath, s.opts.Health.ReadinessHandler())
	if s.opts.Metrics != nil && s.opts.Metrics.Enabled() {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics.Handler())
	}
	if s.opts.Resource != nil {
		mux.Handle("/", s.opts.Resource)
	}

	return middleware.Chain(mux,
		middleware.RecoveryMiddleware,
		middleware.RequestIDMiddleware,
		tracing.HTTPMiddleware(s.opts.Tracer),
		middleware.LoggingMiddleware(s.logger),
	)
}

// Addr returns the address the server listens on once Start has bound it.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
