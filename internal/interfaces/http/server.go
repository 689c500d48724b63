package http

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"time"

	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/internal/interfaces/http/handlers"
	"github.com/turtacn/BioMapper/internal/interfaces/http/middleware"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// ServerConfig is the "server" configuration section.
type ServerConfig struct {
	ListenAddr      string                     `mapstructure:"listen_addr" yaml:"listen_addr"`
	ReadTimeout     time.Duration              `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration              `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration              `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration              `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Limits          handlers.MappingLimits     `mapstructure:"limits" yaml:"limits"`
	RateLimit       middleware.RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// Server runs the API until Stop.
type Server struct {
	srv      *http.Server
	handler  http.Handler
	shutdown time.Duration
	logger   logging.Logger
}

// NewServer wraps handler in an http.Server configured from cfg.
func NewServer(cfg ServerConfig, handler http.Handler, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 30 * time.Second
	}
	return &Server{
		handler:  handler,
		shutdown: shutdown,
		logger:   logger.Named("http"),
		srv: &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// Serve accepts connections on ln until Stop.  It returns nil after a clean
// shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("HTTP server listening", logging.String("addr", ln.Addr().String()))
	if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "http server failed")
	}
	return nil
}

// Start listens on the configured address and serves.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "http listen failed").WithDetail(s.srv.Addr)
	}
	return s.Serve(ln)
}

// Stop drains in-flight requests, bounded by the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	ctx, cancel := context.WithTimeout(ctx, s.shutdown)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "http server shutdown failed")
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

//Personal.AI order the ending
