package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkoenig/werkbank/pkg/observability"
	"github.com/jkoenig/werkbank/pkg/storage"
	"github.com/jkoenig/werkbank/pkg/transport"
)

// Server wraps an http.Server with the turn API adapter and manages
// the full lifecycle including startup and graceful shutdown.
type Server struct {
	adapter *Adapter
	httpSrv *http.Server
	config  ServerConfig
	logger  *slog.Logger
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Addr            string
	MaxBodySize     int64
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MetricsPath     string // empty disables the metrics endpoint
	Logger          *slog.Logger
	// HTTPMiddleware is applied to the full handler, outermost first.
	// Authentication and rate limiting are wired in here.
	HTTPMiddleware []func(http.Handler) http.Handler
}

// ServerOption configures a Server.
type ServerOption func(*ServerConfig)

// WithAddr sets the listen address.
func WithAddr(addr string) ServerOption {
	return func(c *ServerConfig) { c.Addr = addr }
}

// WithMaxBodySize sets the maximum accepted request body size in bytes.
func WithMaxBodySize(n int64) ServerOption {
	return func(c *ServerConfig) { c.MaxBodySize = n }
}

// WithShutdownTimeout sets how long Shutdown waits for in-flight
// requests before closing connections.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *ServerConfig) { c.ShutdownTimeout = d }
}

// WithTimeouts sets the read and write timeouts of the underlying
// http.Server. Zero values keep the defaults.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(c *ServerConfig) {
		if read > 0 {
			c.ReadTimeout = read
		}
		if write > 0 {
			c.WriteTimeout = write
		}
	}
}

// WithMetricsPath enables the Prometheus metrics endpoint at the given
// path.
func WithMetricsPath(path string) ServerOption {
	return func(c *ServerConfig) { c.MetricsPath = path }
}

// WithLogger sets the logger used for server lifecycle messages and the
// per-turn logging middleware.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(c *ServerConfig) { c.Logger = logger }
}

// WithHTTPMiddleware appends HTTP-level middleware. Middleware is
// applied outermost first.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(c *ServerConfig) { c.HTTPMiddleware = append(c.HTTPMiddleware, mw...) }
}

// NewServer creates a server for the given turn runner and optional
// store. The runner is wrapped in the default middleware stack:
// recovery, request ID assignment and per-turn logging.
func NewServer(runner transport.TurnRunner, store storage.TurnStore, opts ...ServerOption) *Server {
	cfg := ServerConfig{
		Addr:            ":8080",
		MaxBodySize:     10 << 20, // 10 MB
		ShutdownTimeout: 30 * time.Second,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    120 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	adapter := NewAdapter(runner, store, Config{
		Addr:        cfg.Addr,
		MaxBodySize: cfg.MaxBodySize,
	},
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(cfg.Logger),
	)

	mux := http.NewServeMux()
	mux.Handle("/", adapter.Handler())
	if cfg.MetricsPath != "" {
		mux.Handle("GET "+cfg.MetricsPath, promhttp.Handler())
	}

	var handler http.Handler = observability.MetricsMiddleware(mux)
	for i := len(cfg.HTTPMiddleware) - 1; i >= 0; i-- {
		handler = cfg.HTTPMiddleware[i](handler)
	}

	return &Server{
		adapter: adapter,
		config:  cfg,
		logger:  cfg.Logger,
		httpSrv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Handler returns the fully assembled handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run starts the server and blocks until the context is cancelled or a
// SIGINT/SIGTERM signal is received, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.config.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ServeOn serves on an existing listener. Intended for tests that need
// an ephemeral port.
func (s *Server) ServeOn(ln net.Listener) error {
	if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
