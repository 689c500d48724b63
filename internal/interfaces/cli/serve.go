package cli

import (
	"context"
	"net"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/turtacn/BioMapper/internal/config"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	apihttp "github.com/turtacn/BioMapper/internal/interfaces/http"
	"github.com/turtacn/BioMapper/internal/interfaces/http/handlers"
	"github.com/turtacn/BioMapper/internal/interfaces/http/middleware"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	ListenAddr string
}

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the mapping HTTP API",
		Long: "Serves POST /api/v1/mappings and GET /api/v1/pipeline with the configured\n" +
			"pipeline, plus /healthz, /readyz and, when metrics are enabled, /metrics.\n\n" +
			"With a table authority, saving the config file reloads the lookup table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ListenAddr, "listen", "", "listen address (overrides server.listen_addr)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := cliCtx.commandContext(cmd.Context())
	defer cancel()

	cfg := *cliCtx.Config
	if opts.ListenAddr != "" {
		cfg.Server.ListenAddr = opts.ListenAddr
	}
	// The API router carries /metrics itself.
	cfg.Metrics.ListenAddr = ""

	m, err := buildMapper(ctx, &cfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	defer m.Close()
	watchAuthority(ctx, cliCtx.ConfigPath, m, cliCtx.Logger)

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "http listen failed").WithDetail(cfg.Server.ListenAddr)
	}
	srv := newAPIServer(&cfg, m, cliCtx.Logger)
	cmd.PrintErrf("Serving mapping API on %s\n", ln.Addr())
	return serveUntilDone(ctx, srv, ln, cliCtx.Logger)
}

func newAPIServer(cfg *config.Config, m *mapper, logger logging.Logger) *apihttp.Server {
	rl := middleware.DefaultRateLimitConfig()
	rl.RequestsPerSecond = cfg.Server.RateLimit.RequestsPerSecond
	rl.Burst = cfg.Server.RateLimit.Burst
	if cfg.Server.RateLimit.IdleTTL > 0 {
		rl.IdleTTL = cfg.Server.RateLimit.IdleTTL
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		MappingHandler:   handlers.NewMappingHandler(m.orchestrator, cfg.Server.Limits, logger),
		HealthHandler:    handlers.NewHealthHandler(Version, m.checks...),
		Logging:          middleware.DefaultLoggingConfig(),
		RateLimit:        rl,
		Logger:           logger,
		MetricsCollector: m.collector,
	})
	return apihttp.NewServer(cfg.Server, router, logger)
}

// watchAuthority reloads the lookup table whenever the config file at path
// changes.  It does nothing without a file or a table authority.
func watchAuthority(ctx context.Context, path string, m *mapper, logger logging.Logger) {
	if path == "" || m.table == nil {
		return
	}
	err := config.Watch(path, func(cfg *config.Config, e fsnotify.Event) {
		if ctx.Err() != nil {
			return
		}
		if err := m.reloadAuthority(ctx, cfg.Authority); err != nil {
			logger.Warn("lookup table reload failed, keeping current table",
				logging.String("event", e.String()), logging.Err(err))
		}
	}, func(err error) {
		logger.Warn("config change rejected", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.String("path", path), logging.Err(err))
		return
	}
	logger.Info("watching config for lookup table changes", logging.String("path", path))
}

// serveUntilDone serves on ln until ctx ends, then drains the server.
func serveUntilDone(ctx context.Context, srv *apihttp.Server, ln net.Listener, logger logging.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("stopping mapping API", logging.String("reason", context.Cause(ctx).Error()))
	if err := srv.Stop(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

//Personal.AI order the ending
