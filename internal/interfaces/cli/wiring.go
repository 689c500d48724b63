package cli

import (
	"context"
	stderrors "errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/config"
	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/internal/infrastructure/authority/table"
	"github.com/turtacn/BioMapper/internal/infrastructure/authority/uniprot"
	"github.com/turtacn/BioMapper/internal/infrastructure/database/redis"
	"github.com/turtacn/BioMapper/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/BioMapper/internal/interfaces/http/handlers"
	"github.com/turtacn/BioMapper/pkg/errors"
)

func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// mapper is the orchestrator plus everything it was assembled from.  Close
// releases the pieces in reverse order of creation.
type mapper struct {
	orchestrator *pipeline.Orchestrator
	collector    prometheus.MetricsCollector
	closers      []func() error
	checks       []handlers.HealthChecker
	logger       logging.Logger

	// Set when the resolver answers from a lookup table.
	table *table.Authority
	cache resolution.Cache
}

func (m *mapper) onClose(fn func() error) { m.closers = append(m.closers, fn) }

func (m *mapper) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return stderrors.Join(errs...)
}

// buildMapper assembles the orchestrator described by cfg.  The resolver,
// its authority and cache are only built when a historical stage is
// configured.
func buildMapper(ctx context.Context, cfg *config.Config, logger logging.Logger) (_ *mapper, err error) {
	m := &mapper{logger: logger}
	defer func() {
		if err != nil {
			_ = m.Close()
		}
	}()

	var opts []pipeline.Option
	var metrics *prometheus.MappingMetrics
	if cfg.Metrics.Enabled {
		m.collector, err = prometheus.NewMetricsCollector(cfg.Metrics.Collector, logger.Named("metrics"))
		if err != nil {
			return nil, err
		}
		metrics = prometheus.NewMappingMetrics(m.collector)
		opts = append(opts, pipeline.WithMetrics(metrics))
		if cfg.Metrics.ListenAddr != "" {
			m.serveMetrics(cfg.Metrics.ListenAddr, cfg.Metrics.Path)
		}
	}

	var resolver *resolution.Resolver
	if cfg.Pipeline.RequiresResolver() {
		resolver, err = m.buildResolver(ctx, cfg, metrics)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Events.Enabled {
		publisher, err := m.buildPublisher(ctx, cfg.Events)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithPublisher(publisher))
	}

	m.orchestrator, err = pipeline.Build(cfg.Pipeline, pipeline.Dependencies{Resolver: resolver, Logger: logger}, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *mapper) buildResolver(ctx context.Context, cfg *config.Config, metrics *prometheus.MappingMetrics) (*resolution.Resolver, error) {
	authority, err := newAuthority(cfg.Authority, m.logger)
	if err != nil {
		return nil, err
	}
	if t, ok := authority.(*table.Authority); ok {
		m.table = t
	}
	scorer, err := matching.NewScorer(cfg.Pipeline.Scorer)
	if err != nil {
		return nil, err
	}
	m.cache, err = m.newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []resolution.Option{
		resolution.WithCache(m.cache),
		resolution.WithScorer(scorer),
		resolution.WithRetryPolicy(cfg.Resolver.RetryPolicy()),
		resolution.WithLogger(m.logger.Named("resolver")),
	}
	if cfg.Resolver.CircuitBreakerThreshold > 0 {
		opts = append(opts, resolution.WithCircuitBreaker(resolution.NewCircuitBreaker(cfg.Resolver.Breaker())))
	}
	if metrics != nil {
		opts = append(opts, resolution.WithMetrics(metrics))
	}
	return resolution.NewResolver(authority, cfg.Resolver.Resolution(), opts...)
}

func newAuthority(cfg config.AuthorityConfig, logger logging.Logger) (resolution.Authority, error) {
	switch cfg.Kind {
	case config.AuthorityTable:
		return table.Load(cfg.TablePath)
	case config.AuthorityUniProt:
		return uniprot.New(cfg.UniProt, uniprot.WithLogger(logger.Named("uniprot")))
	default:
		return nil, errors.Configuration("invalid authority.kind").WithDetail(cfg.Kind)
	}
}

// reloadAuthority re-reads the lookup table named by cfg and drops cached
// verdicts for every id the old or new table mentions.  Other authorities
// are left alone.
func (m *mapper) reloadAuthority(ctx context.Context, cfg config.AuthorityConfig) error {
	if m.table == nil {
		return nil
	}
	if cfg.Kind != config.AuthorityTable {
		m.logger.Warn("authority kind changed, restart to apply", logging.String("kind", cfg.Kind))
		return nil
	}
	before := m.table.IDs()
	if err := m.table.ReloadFrom(cfg.TablePath); err != nil {
		return err
	}
	stale := append(before, m.table.IDs()...)
	if err := m.cache.Invalidate(ctx, stale...); err != nil {
		m.logger.Warn("cache invalidation after table reload failed", logging.Err(err))
	}
	m.logger.Info("lookup table reloaded",
		logging.String("path", cfg.TablePath), logging.Int("entries", m.table.Len()))
	return nil
}

func (m *mapper) newCache(ctx context.Context, cfg *config.Config) (resolution.Cache, error) {
	if cfg.Cache.Backend != config.CacheBackendRedis {
		return resolution.NewMemoryCache(), nil
	}
	redisCfg := cfg.Redis
	client, err := redis.NewClient(&redisCfg, m.logger.Named("redis"))
	if err != nil {
		return nil, err
	}
	m.onClose(client.Close)
	m.checks = append(m.checks, handlers.CheckFunc("redis", client.Ping))
	return redis.NewResolutionCache(client, m.logger,
		redis.WithPrefix(cfg.Cache.KeyPrefix),
		redis.WithTTLJitter(cfg.Cache.TTLJitter),
	), nil
}

func (m *mapper) buildPublisher(ctx context.Context, cfg config.EventsConfig) (*kafka.EventPublisher, error) {
	if cfg.EnsureTopics {
		if err := ensureTopics(ctx, cfg, m.logger); err != nil {
			return nil, err
		}
	}
	producer, err := kafka.NewProducer(cfg.Producer, m.logger)
	if err != nil {
		return nil, err
	}
	m.onClose(producer.Close)
	return kafka.NewEventPublisher(producer, cfg.Topics, m.logger), nil
}

func ensureTopics(ctx context.Context, cfg config.EventsConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(ctx, cfg.Producer.Brokers, cfg.Producer.Security, logger)
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg.Topics, cfg.ReplicationFactor))
}

// serveMetrics exposes the collector on addr for the life of the mapper.
func (m *mapper) serveMetrics(addr, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, m.collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server failed", logging.String("addr", addr), logging.Err(err))
		}
	}()
	m.logger.Info("metrics server listening", logging.String("addr", addr), logging.String("path", path))

	m.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

//Personal.AI order the ending
