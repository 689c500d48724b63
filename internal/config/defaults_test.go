package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/BioMapper/internal/application/pipeline"
	"github.com/turtacn/BioMapper/internal/domain/matching"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultBatchSize, cfg.Resolver.BatchSize)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.Resolver.TimeoutSeconds)
	assert.Equal(t, DefaultCacheTTLSeconds, cfg.Resolver.CacheTTLSeconds)
	assert.Equal(t, DefaultCacheBackend, cfg.Cache.Backend)
	assert.Equal(t, DefaultAuthority, cfg.Authority.Kind)
	assert.Equal(t, "_", cfg.Pipeline.CompositeDelimiter)
	assert.Equal(t, matching.DefaultScorerConfig(), cfg.Pipeline.Scorer)
	assert.Zero(t, cfg.Resolver.MaxRetries)
	assert.Equal(t, DefaultServerListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, DefaultMaxIdentifiers, cfg.Server.Limits.MaxIdentifiers)
	assert.EqualValues(t, DefaultMaxBodyBytes, cfg.Server.Limits.MaxBodyBytes)
	assert.Equal(t, DefaultRunTimeout, cfg.Server.Limits.RunTimeout)
	assert.Zero(t, cfg.Server.WriteTimeout)
	assert.Zero(t, cfg.Server.RateLimit.RequestsPerSecond)
	ApplyDefaults(nil)
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	cfg := &Config{}
	cfg.Resolver.BatchSize = 25
	cfg.Pipeline.MatchMode = "many_to_many"
	cfg.Pipeline.Stages = []pipeline.StageConfig{{Name: "exact", Method: pipeline.StageDirect}}
	cfg.Redis.Mode = "cluster"
	ApplyDefaults(cfg)

	assert.Equal(t, 25, cfg.Resolver.BatchSize)
	assert.Equal(t, "many_to_many", string(cfg.Pipeline.MatchMode))
	assert.Len(t, cfg.Pipeline.Stages, 1)
	assert.Empty(t, cfg.Redis.Addr)
}

//Personal.AI order the ending
