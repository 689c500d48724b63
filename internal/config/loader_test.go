package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

const validConfigYAML = `
log:
  level: debug
  format: console
pipeline:
  match_mode: many_to_many
  composite_handling: both
  stages:
    - name: exact
      method: direct
    - name: history
      method: historical
    - name: fuzzy
      method: similarity
      similarity:
        algorithm: levenshtein
        threshold: 0.8
resolver:
  batch_size: 50
  timeout_seconds: 10
  max_retries: 0
  circuit_breaker_reset: 2m
  requests_per_second: 5
cache:
  backend: redis
redis:
  addr: "cache:6379"
authority:
  kind: table
  table_path: /data/uniprot.yaml
events:
  enabled: true
  producer:
    brokers: ["kafka-1:9092", "kafka-2:9092"]
    acks: all
  topics:
    include_matches: true
metrics:
  enabled: true
  listen_addr: ":9102"
server:
  listen_addr: ":8443"
  write_timeout: 10m
  limits:
    max_identifiers: 5000
  rate_limit:
    requests_per_second: 2.5
    burst: 5
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, mapping.MatchModeManyToMany, cfg.Pipeline.MatchMode)
	require.Len(t, cfg.Pipeline.Stages, 3)
	assert.Equal(t, pipeline.StageHistorical, cfg.Pipeline.Stages[1].Method)
	require.NotNil(t, cfg.Pipeline.Stages[2].Similarity)
	assert.Equal(t, matching.AlgorithmLevenshtein, cfg.Pipeline.Stages[2].Similarity.Algorithm)

	assert.Equal(t, 50, cfg.Resolver.BatchSize)
	assert.Zero(t, cfg.Resolver.MaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Resolver.CircuitBreakerReset)
	assert.Equal(t, DefaultCacheTTLSeconds, cfg.Resolver.CacheTTLSeconds)

	assert.Equal(t, CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, AuthorityTable, cfg.Authority.Kind)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Producer.Brokers)
	assert.True(t, cfg.Events.Topics.IncludeMatches)
	assert.Equal(t, DefaultMetricsNamespace, cfg.Metrics.Collector.Namespace)

	assert.Equal(t, ":8443", cfg.Server.ListenAddr)
	assert.Equal(t, 10*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 5000, cfg.Server.Limits.MaxIdentifiers)
	assert.Equal(t, DefaultRunTimeout, cfg.Server.Limits.RunTimeout)
	assert.InDelta(t, 2.5, cfg.Server.RateLimit.RequestsPerSecond, 1e-9)
	assert.Equal(t, 5, cfg.Server.RateLimit.Burst)
}

func TestLoad_PartialScorerKeepsOtherTiers(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, "pipeline:\n  scorer:\n    historical_secondary: 0.8\n"))
	require.NoError(t, err)

	want := matching.DefaultScorerConfig()
	want.HistoricalSecondary = 0.8
	assert.Equal(t, want, cfg.Pipeline.Scorer)
}

func TestLoad_ExplicitZeroTierIsKept(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, "pipeline:\n  scorer:\n    historical_demerged: 0\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Pipeline.Scorer.HistoricalDemerged)
	assert.Equal(t, 1.0, cfg.Pipeline.Scorer.Direct)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestLoad_InvalidConfig(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "pipeline:\n  match_mode: sometimes\n"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownMatchMode, errors.GetCode(err))
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("BIOMAPPER_RESOLVER_BATCH_SIZE", "7")
	t.Setenv("BIOMAPPER_LOG_LEVEL", "warn")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Resolver.BatchSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BIOMAPPER_PIPELINE_MATCH_MODE", "many_to_many")
	t.Setenv("BIOMAPPER_CACHE_BACKEND", "redis")
	t.Setenv("BIOMAPPER_REDIS_ADDR", "redis:6379")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, mapping.MatchModeManyToMany, cfg.Pipeline.MatchMode)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, DefaultMaxRetries, cfg.Resolver.MaxRetries)
	assert.Len(t, cfg.Pipeline.Stages, 3)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "nope.yaml")) })
}

func TestWatch(t *testing.T) {
	path := createTempConfigFile(t, "log:\n  level: info\n")

	changed := make(chan *Config, 4)
	require.NoError(t, Watch(path, func(cfg *Config, e fsnotify.Event) {
		changed <- cfg
	}, nil))

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, "error", cfg.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "nope.yaml"), func(*Config, fsnotify.Event) {}, nil)
	assert.Error(t, err)
}

//Personal.AI order the ending
