package config

import (
	"time"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/domain/identifier"
	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/internal/infrastructure/authority/uniprot"
	"github.com/turtacn/BioMapper/internal/infrastructure/database/redis"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultBatchSize               = 100
	DefaultTimeoutSeconds          = 30
	DefaultMaxRetries              = 3
	DefaultCircuitBreakerThreshold = 5
	DefaultCacheTTLSeconds         = 86400
	DefaultMaxConcurrentBatches    = 4

	DefaultCacheBackend = CacheBackendMemory
	DefaultRedisAddr    = "localhost:6379"
	DefaultAuthority    = AuthorityUniProt

	DefaultKafkaBroker   = "localhost:9092"
	DefaultConsumerGroup = "biomapper-tail"

	DefaultMetricsNamespace = "biomapper"
	DefaultMetricsPath      = "/metrics"

	DefaultServerListenAddr = ":8080"
	DefaultReadTimeout      = 30 * time.Second
	DefaultIdleTimeout      = 120 * time.Second
	DefaultShutdownTimeout  = 30 * time.Second
	DefaultMaxIdentifiers   = 100000
	DefaultMaxBodyBytes     = 32 << 20
	DefaultRunTimeout       = 5 * time.Minute
	DefaultRateLimitIdleTTL = 5 * time.Minute
)

// ApplyDefaults fills zero-value fields in cfg.  Values already set are left
// unchanged so explicit configuration always wins.  Boolean switches cannot
// be told apart from "unset" and are never defaulted.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	applyPipelineDefaults(&cfg.Pipeline)

	// ── Resolver ──────────────────────────────────────────────────────────────
	r := &cfg.Resolver
	if r.BatchSize == 0 {
		r.BatchSize = DefaultBatchSize
	}
	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if r.CircuitBreakerThreshold == 0 {
		r.CircuitBreakerThreshold = DefaultCircuitBreakerThreshold
	}
	if r.CacheTTLSeconds == 0 {
		r.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if r.MaxConcurrentBatches == 0 {
		r.MaxConcurrentBatches = DefaultMaxConcurrentBatches
	}
	// MaxRetries: 0 is a valid explicit value; the loader seeds the default.

	// ── Cache / Redis ─────────────────────────────────────────────────────────
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = DefaultCacheBackend
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = redis.DefaultKeyPrefix
	}
	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = "standalone"
	}
	if cfg.Redis.Addr == "" && cfg.Redis.Mode == "standalone" {
		cfg.Redis.Addr = DefaultRedisAddr
	}

	// ── Authority ─────────────────────────────────────────────────────────────
	if cfg.Authority.Kind == "" {
		cfg.Authority.Kind = DefaultAuthority
	}
	if cfg.Authority.UniProt.BaseURL == "" {
		cfg.Authority.UniProt.BaseURL = uniprot.DefaultBaseURL
	}
	if cfg.Authority.UniProt.PageSize == 0 {
		cfg.Authority.UniProt.PageSize = uniprot.DefaultPageSize
	}

	// ── Events ────────────────────────────────────────────────────────────────
	if len(cfg.Events.Producer.Brokers) == 0 {
		cfg.Events.Producer.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Events.ConsumerGroup == "" {
		cfg.Events.ConsumerGroup = DefaultConsumerGroup
	}
	if cfg.Events.ReplicationFactor == 0 {
		cfg.Events.ReplicationFactor = 1
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Collector.Namespace == "" {
		cfg.Metrics.Collector.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Server ────────────────────────────────────────────────────────────────
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultServerListenAddr
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.Limits.MaxIdentifiers == 0 {
		s.Limits.MaxIdentifiers = DefaultMaxIdentifiers
	}
	if s.Limits.MaxBodyBytes == 0 {
		s.Limits.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.Limits.RunTimeout == 0 {
		s.Limits.RunTimeout = DefaultRunTimeout
	}
	if s.RateLimit.IdleTTL == 0 {
		s.RateLimit.IdleTTL = DefaultRateLimitIdleTTL
	}
}

func applyPipelineDefaults(p *pipeline.Config) {
	def := pipeline.DefaultConfig()
	if p.MatchMode == "" {
		p.MatchMode = def.MatchMode
	}
	if p.CompositeHandling == "" {
		p.CompositeHandling = def.CompositeHandling
	}
	if p.CompositeDelimiter == "" {
		p.CompositeDelimiter = def.CompositeDelimiter
	}
	if p.Normalizer.StripPrefixes == nil {
		p.Normalizer.StripPrefixes = identifier.DefaultConfig().StripPrefixes
	}
	// A zero tier is a legitimate value; the loader seeds per-tier defaults
	// and only an entirely unset table is filled here.
	if p.Scorer == (matching.ScorerConfig{}) {
		p.Scorer = def.Scorer
	}
	if p.Similarity.Algorithm == "" {
		p.Similarity.Algorithm = def.Similarity.Algorithm
	}
	if p.Similarity.Threshold == 0 {
		p.Similarity.Threshold = def.Similarity.Threshold
	}
	if len(p.Stages) == 0 {
		p.Stages = def.Stages
	}
}

// Default returns a fully defaulted Config.
func Default() *Config {
	cfg := &Config{}
	cfg.Resolver.MaxRetries = DefaultMaxRetries
	ApplyDefaults(cfg)
	return cfg
}

//Personal.AI order the ending
