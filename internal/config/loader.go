package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/pkg/errors"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "BIOMAPPER"

// envKeys are the settings that can be overridden from the environment
// without a config file.  Nested keys map to BIOMAPPER_<SECTION>_<FIELD>.
var envKeys = []string{
	"log.level", "log.format",
	"pipeline.match_mode", "pipeline.composite_handling", "pipeline.composite_delimiter",
	"resolver.batch_size", "resolver.timeout_seconds", "resolver.max_retries",
	"resolver.initial_backoff", "resolver.max_backoff",
	"resolver.circuit_breaker_threshold", "resolver.circuit_breaker_reset",
	"resolver.cache_ttl_seconds", "resolver.max_concurrent_batches", "resolver.requests_per_second",
	"cache.backend", "cache.key_prefix", "cache.ttl_jitter",
	"redis.mode", "redis.addr", "redis.username", "redis.password", "redis.db",
	"authority.kind", "authority.table_path", "authority.uniprot.base_url",
	"events.enabled", "events.producer.brokers", "events.producer.sasl_username", "events.producer.sasl_password",
	"metrics.enabled", "metrics.listen_addr",
	"server.listen_addr", "server.write_timeout", "server.limits.max_identifiers",
	"server.limits.run_timeout", "server.rate_limit.requests_per_second", "server.rate_limit.burst",
}

// newViper builds a Viper instance with YAML file type, the BIOMAPPER_ env
// prefix and a "." → "_" key replacer.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	// Zero retries is a legitimate choice, so the default is seeded here
	// rather than in ApplyDefaults.
	v.SetDefault("resolver.max_retries", DefaultMaxRetries)
	// Same for the confidence tiers, each defaulted on its own.
	scorer := matching.DefaultScorerConfig()
	v.SetDefault("pipeline.scorer.direct", scorer.Direct)
	v.SetDefault("pipeline.scorer.composite", scorer.Composite)
	v.SetDefault("pipeline.scorer.historical_primary", scorer.HistoricalPrimary)
	v.SetDefault("pipeline.scorer.historical_secondary", scorer.HistoricalSecondary)
	v.SetDefault("pipeline.scorer.historical_demerged", scorer.HistoricalDemerged)
	return v
}

// Load reads the YAML file at configPath, merges BIOMAPPER_* overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to read config file").WithDetail(configPath)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from BIOMAPPER_* environment variables and
// defaults only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "failed to unmarshal configuration")
	}
	ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Watch reads configPath and then calls onChange with the re-parsed Config
// whenever the file changes on disk.  A change that fails to parse or
// validate is reported to onError, when set, and onChange is skipped.
// Watching runs on a viper-managed goroutine for the life of the process.
func Watch(configPath string, onChange func(*Config, fsnotify.Event), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfiguration, "failed to read config file").WithDetail(configPath)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg, e)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on any error.  For use in main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic("config: MustLoad failed: " + err.Error())
	}
	return cfg
}

//Personal.AI order the ending
