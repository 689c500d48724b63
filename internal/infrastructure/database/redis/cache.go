package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/BioMapper/internal/domain/resolution"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// DefaultKeyPrefix namespaces resolution verdicts.
const DefaultKeyPrefix = "biomapper:resolution:"

var ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "resolution record serialization failed")

// ResolutionCache stores ResolutionRecords as JSON under prefix+id.  Writes
// use SET NX, so the first verdict for an id wins until it expires.
type ResolutionCache struct {
	client    *Client
	logger    logging.Logger
	prefix    string
	ttlJitter float64
}

// CacheOption configures a ResolutionCache.
type CacheOption func(*ResolutionCache)

// WithPrefix overrides DefaultKeyPrefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *ResolutionCache) { c.prefix = prefix }
}

// WithTTLJitter spreads expirations by ±fraction of the ttl.
func WithTTLJitter(fraction float64) CacheOption {
	return func(c *ResolutionCache) {
		if fraction >= 0 && fraction < 1 {
			c.ttlJitter = fraction
		}
	}
}

// NewResolutionCache returns a Redis-backed resolution.Cache.
func NewResolutionCache(client *Client, log logging.Logger, opts ...CacheOption) *ResolutionCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ResolutionCache{client: client, logger: log.Named("resolution-cache"), prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResolutionCache) key(id string) string { return c.prefix + id }

func (c *ResolutionCache) jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 || c.ttlJitter == 0 {
		return ttl
	}
	delta := float64(ttl) * c.ttlJitter * (rand.Float64()*2 - 1)
	return ttl + time.Duration(delta)
}

// Get returns the cached verdict for id.
func (c *ResolutionCache) Get(ctx context.Context, id string) (mapping.ResolutionRecord, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return mapping.ResolutionRecord{}, false, nil
	}
	if err != nil {
		return mapping.ResolutionRecord{}, false, errors.Wrap(err, errors.ErrCodeCacheError, "resolution cache get failed").WithDetail(id)
	}

	var rec mapping.ResolutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return mapping.ResolutionRecord{}, false, ErrSerializationFailed.WithCause(err).WithDetail(id)
	}
	if err := rec.Validate(); err != nil {
		c.logger.Warn("discarding invalid cached record", logging.String("id", id), logging.Err(err))
		return mapping.ResolutionRecord{}, false, nil
	}
	return rec, true, nil
}

// PutIfAbsent stores rec unless a live entry exists.  ttl <= 0 stores without
// expiry.
func (c *ResolutionCache) PutIfAbsent(ctx context.Context, id string, rec mapping.ResolutionRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, ErrSerializationFailed.WithCause(err).WithDetail(id)
	}
	if ttl < 0 {
		ttl = 0
	}
	stored, err := c.client.SetNX(ctx, c.key(id), data, c.jitter(ttl)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "resolution cache put failed").WithDetail(id)
	}
	return stored, nil
}

// Invalidate removes the entries for ids.
func (c *ResolutionCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "resolution cache invalidate failed")
	}
	return nil
}

// Purge removes every entry under the prefix and returns how many were
// deleted.
func (c *ResolutionCache) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	var cursor uint64
	match := c.prefix + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "resolution cache scan failed")
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "resolution cache purge failed")
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

var _ resolution.Cache = (*ResolutionCache)(nil)

//Personal.AI order the ending
