// Package config defines the BioMapper configuration tree.  Each section
// reuses the settings type of the component it configures, so the YAML shape
// follows the code one-to-one.
package config

import (
	"time"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/internal/infrastructure/authority/uniprot"
	"github.com/turtacn/BioMapper/internal/infrastructure/database/redis"
	"github.com/turtacn/BioMapper/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/prometheus"
	apihttp "github.com/turtacn/BioMapper/internal/interfaces/http"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// Authority kinds.
const (
	AuthorityUniProt = "uniprot"
	AuthorityTable   = "table"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ResolverConfig holds the historical-resolution tunables.  Second-valued
// fields keep the names used in run configurations.
type ResolverConfig struct {
	BatchSize               int           `mapstructure:"batch_size" yaml:"batch_size"`
	TimeoutSeconds          int           `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries              int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff          time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff              time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	CircuitBreakerThreshold int           `mapstructure:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold"`
	CircuitBreakerReset     time.Duration `mapstructure:"circuit_breaker_reset" yaml:"circuit_breaker_reset"`
	CacheTTLSeconds         int           `mapstructure:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`
	MaxConcurrentBatches    int           `mapstructure:"max_concurrent_batches" yaml:"max_concurrent_batches"`
	RequestsPerSecond       float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// Resolution converts to the resolver's own Config.
func (r ResolverConfig) Resolution() resolution.Config {
	return resolution.Config{
		BatchSize:            r.BatchSize,
		Timeout:              time.Duration(r.TimeoutSeconds) * time.Second,
		MaxConcurrentBatches: r.MaxConcurrentBatches,
		CacheTTL:             time.Duration(r.CacheTTLSeconds) * time.Second,
		RequestsPerSecond:    r.RequestsPerSecond,
	}
}

// RetryPolicy builds the resolver retry policy.
func (r ResolverConfig) RetryPolicy() resolution.RetryPolicy {
	p := resolution.DefaultRetryPolicy()
	p.MaxRetries = r.MaxRetries
	if r.InitialBackoff > 0 {
		p.InitialBackoff = r.InitialBackoff
	}
	if r.MaxBackoff > 0 {
		p.MaxBackoff = r.MaxBackoff
	}
	return p
}

// Breaker returns the circuit breaker settings.
func (r ResolverConfig) Breaker() resolution.BreakerConfig {
	return resolution.BreakerConfig{Threshold: r.CircuitBreakerThreshold, ResetTimeout: r.CircuitBreakerReset}
}

// CacheConfig selects where resolution verdicts are cached.
type CacheConfig struct {
	Backend   string  `mapstructure:"backend" yaml:"backend"` // memory | redis
	KeyPrefix string  `mapstructure:"key_prefix" yaml:"key_prefix"`
	TTLJitter float64 `mapstructure:"ttl_jitter" yaml:"ttl_jitter"`
}

// AuthorityConfig selects the historical-resolution authority.
type AuthorityConfig struct {
	Kind      string         `mapstructure:"kind" yaml:"kind"` // uniprot | table
	UniProt   uniprot.Config `mapstructure:"uniprot" yaml:"uniprot"`
	TablePath string         `mapstructure:"table_path" yaml:"table_path"`
}

// EventsConfig enables stage and run events on Kafka.
type EventsConfig struct {
	Enabled           bool                  `mapstructure:"enabled" yaml:"enabled"`
	Producer          kafka.ProducerConfig  `mapstructure:"producer" yaml:"producer"`
	Topics            kafka.PublisherConfig `mapstructure:"topics" yaml:"topics"`
	EnsureTopics      bool                  `mapstructure:"ensure_topics" yaml:"ensure_topics"`
	ReplicationFactor int                   `mapstructure:"replication_factor" yaml:"replication_factor"`
	ConsumerGroup     string                `mapstructure:"consumer_group" yaml:"consumer_group"`
}

// MetricsConfig enables the Prometheus registry and its scrape endpoint.
type MetricsConfig struct {
	Enabled    bool                       `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string                     `mapstructure:"listen_addr" yaml:"listen_addr"`
	Path       string                     `mapstructure:"path" yaml:"path"`
	Collector  prometheus.CollectorConfig `mapstructure:"collector" yaml:"collector"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration.
type Config struct {
	Log       logging.LogConfig `mapstructure:"log" yaml:"log"`
	Pipeline  pipeline.Config   `mapstructure:"pipeline" yaml:"pipeline"`
	Resolver  ResolverConfig    `mapstructure:"resolver" yaml:"resolver"`
	Cache     CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Redis     redis.RedisConfig `mapstructure:"redis" yaml:"redis"`
	Authority AuthorityConfig   `mapstructure:"authority" yaml:"authority"`
	Events    EventsConfig      `mapstructure:"events" yaml:"events"`
	Metrics   MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`

	// Server configures "biomapper serve".
	Server apihttp.ServerConfig `mapstructure:"server" yaml:"server"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate checks the whole tree and returns the first problem as a CFG_*
// error.  Sections that are switched off are not checked.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Configuration("invalid log.level").WithDetail(c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.Configuration("invalid log.format").WithDetail(c.Log.Format)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return err
	}

	if c.Resolver.MaxRetries < 0 {
		return errors.Configuration("resolver.max_retries must be >= 0")
	}
	if c.Resolver.CircuitBreakerThreshold < 0 {
		return errors.Configuration("resolver.circuit_breaker_threshold must be >= 0")
	}
	if err := c.Resolver.Resolution().Validate(); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.Addr == "" && len(c.Redis.ClusterAddrs) == 0 && len(c.Redis.SentinelAddrs) == 0 {
			return errors.Configuration("cache.backend redis requires redis.addr")
		}
	default:
		return errors.Configuration("invalid cache.backend").WithDetail(c.Cache.Backend)
	}
	if c.Cache.TTLJitter < 0 || c.Cache.TTLJitter >= 1 {
		return errors.Configuration("cache.ttl_jitter must be in [0,1)")
	}

	switch c.Authority.Kind {
	case AuthorityUniProt:
	case AuthorityTable:
		if c.Authority.TablePath == "" {
			return errors.Configuration("authority.kind table requires authority.table_path")
		}
	default:
		return errors.Configuration("invalid authority.kind").WithDetail(c.Authority.Kind)
	}

	if c.Events.Enabled {
		if err := kafka.ValidateProducerConfig(c.Events.Producer); err != nil {
			return err
		}
	}

	if c.Metrics.Enabled && c.Metrics.Collector.Namespace == "" {
		return errors.Configuration("metrics.collector.namespace is required")
	}

	return c.validateServer()
}

func (c *Config) validateServer() error {
	s := c.Server
	if s.ListenAddr == "" {
		return errors.Configuration("server.listen_addr is required")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 || s.ShutdownTimeout < 0 {
		return errors.Configuration("server timeouts must be >= 0")
	}
	if s.Limits.MaxIdentifiers < 0 || s.Limits.MaxBodyBytes < 0 || s.Limits.RunTimeout < 0 {
		return errors.Configuration("server.limits must be >= 0")
	}
	if s.WriteTimeout > 0 && s.Limits.RunTimeout > 0 && s.WriteTimeout <= s.Limits.RunTimeout {
		return errors.Configuration("server.write_timeout must exceed server.limits.run_timeout")
	}
	if s.RateLimit.RequestsPerSecond < 0 || s.RateLimit.Burst < 0 {
		return errors.Configuration("server.rate_limit must be >= 0")
	}
	return nil
}

//Personal.AI order the ending
