package resolution

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/turtacn/BioMapper/internal/domain/matching"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// Diagnostics attached to degraded records.
const (
	DiagnosticCircuitOpen      = "circuit_open"
	DiagnosticRetriesExhausted = "retries_exhausted"
	DiagnosticCancelled        = "cancelled"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds the resolver tunables.
type Config struct {
	BatchSize            int           `mapstructure:"batch_size" yaml:"batch_size"`
	Timeout              time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxConcurrentBatches int           `mapstructure:"max_concurrent_batches" yaml:"max_concurrent_batches"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// RequestsPerSecond spaces network attempts; 0 means unlimited.  Cache
	// hits never consume a token.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// DefaultConfig returns batch 100, 30s timeout, 4 concurrent batches and a
// one-day cache TTL.
func DefaultConfig() Config {
	return Config{
		BatchSize:            100,
		Timeout:              30 * time.Second,
		MaxConcurrentBatches: 4,
		CacheTTL:             24 * time.Hour,
	}
}

// Validate checks the tunables.
func (c Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return errors.Configuration("resolver batch_size must be > 0")
	case c.Timeout <= 0:
		return errors.Configuration("resolver timeout must be > 0")
	case c.MaxConcurrentBatches <= 0:
		return errors.Configuration("resolver max_concurrent_batches must be > 0")
	case c.CacheTTL < 0:
		return errors.Configuration("resolver cache_ttl must be >= 0")
	case c.RequestsPerSecond < 0:
		return errors.Configuration("resolver requests_per_second must be >= 0")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache sets the shared cache.  Without it each Resolver uses a private
// MemoryCache.
func WithCache(c Cache) Option {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Resolver) { r.retry = p }
}

// WithCircuitBreaker sets the breaker.  A nil breaker disables it.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(r *Resolver) { r.breaker = cb }
}

// WithScorer sets the confidence table.
func WithScorer(s *matching.Scorer) Option {
	return func(r *Resolver) {
		if s != nil {
			r.scorer = s
		}
	}
}

// WithMetrics sets the telemetry sink.
func WithMetrics(m Metrics) Option {
	return func(r *Resolver) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Resolution
// ─────────────────────────────────────────────────────────────────────────────

// Resolution is the outcome of one ResolveBatch call.  Records holds exactly
// one entry per distinct input id.
type Resolution struct {
	Records map[string]mapping.ResolutionRecord

	// CircuitOpen is set when at least one batch was short-circuited.
	CircuitOpen    bool
	FailedBatches  int
	SkippedBatches int
	NetworkBatches int
	CacheHits      int

	// SharedBatches counts batches whose lookup was shared with a concurrent
	// ResolveBatch call.
	SharedBatches int
}

// Obsolete returns how many records are obsolete, degraded ones included.
func (r *Resolution) Obsolete() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Type == mapping.ResolutionObsolete {
			n++
		}
	}
	return n
}

// Failed returns how many records carry ResolutionFailed.
func (r *Resolution) Failed() int {
	n := 0
	for _, rec := range r.Records {
		if rec.ResolutionFailed {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Resolver
// ─────────────────────────────────────────────────────────────────────────────

// Resolver classifies identifiers through an Authority.  ResolveBatch never
// returns an error: failures degrade to obsolete records flagged
// ResolutionFailed.  Concurrent ResolveBatch calls that need the same batch
// of cache misses share one authority lookup.
type Resolver struct {
	authority Authority
	cfg       Config
	retry     RetryPolicy
	breaker   *CircuitBreaker
	cache     Cache
	scorer    *matching.Scorer
	metrics   Metrics
	logger    logging.Logger
	limiter   *rate.Limiter
	flight    singleflight.Group
}

// NewResolver validates cfg and wires the collaborators.
func NewResolver(authority Authority, cfg Config, opts ...Option) (*Resolver, error) {
	if authority == nil {
		return nil, errors.Configuration("resolver requires an authority")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Resolver{
		authority: authority,
		cfg:       cfg,
		retry:     DefaultRetryPolicy(),
		cache:     NewMemoryCache(),
		scorer:    matching.DefaultScorer(),
		metrics:   NoopMetrics(),
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if cfg.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	r.logger = r.logger.Named("resolver").With(logging.String("authority", authority.Name()))
	if r.breaker != nil {
		r.breaker.OnStateChange(func(from, to BreakerState) {
			r.logger.Warn("circuit breaker state change",
				logging.String("from", from.String()), logging.String("to", to.String()))
			r.metrics.RecordBreakerTransition(from.String(), to.String())
		})
	}
	return r, nil
}

// Breaker returns the injected breaker, or nil.
func (r *Resolver) Breaker() *CircuitBreaker { return r.breaker }

// ResolveBatch classifies every distinct id in ids.  Cached verdicts are
// reused; misses are looked up in batches of BatchSize, up to
// MaxConcurrentBatches at a time.
func (r *Resolver) ResolveBatch(ctx context.Context, ids []string) *Resolution {
	res := &Resolution{Records: make(map[string]mapping.ResolutionRecord, len(ids))}
	log := r.logger.WithContext(ctx)

	var misses []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		rec, hit, err := r.cache.Get(ctx, id)
		if err != nil {
			log.Warn("cache read failed, treating as miss", logging.String("id", id), logging.Err(err))
		}
		r.metrics.RecordCacheLookup(hit && err == nil)
		if hit && err == nil {
			res.Records[id] = rec
			res.CacheHits++
			continue
		}
		misses = append(misses, id)
	}

	batches := partition(misses, r.cfg.BatchSize)
	if len(batches) == 0 {
		return res
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrentBatches)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			out := r.resolveShared(gctx, i, batch)
			mu.Lock()
			defer mu.Unlock()
			for id, rec := range out.records {
				res.Records[id] = rec.Clone()
			}
			if out.shared {
				res.SharedBatches++
			}
			switch out.status {
			case batchSkipped:
				res.SkippedBatches++
				res.CircuitOpen = true
			case batchFailed, batchCancelled:
				res.FailedBatches++
				res.NetworkBatches++
			default:
				res.NetworkBatches++
			}
			return nil
		})
	}
	_ = g.Wait()

	if res.CircuitOpen || r.breaker.State() == BreakerOpen {
		res.CircuitOpen = true
		log.Warn("resolver degraded by open circuit",
			logging.Int("skipped_batches", res.SkippedBatches), logging.Int("failed_batches", res.FailedBatches))
	}
	log.Debug("resolve batch complete",
		logging.Int("ids", len(seen)), logging.Int("cache_hits", res.CacheHits),
		logging.Int("network_batches", res.NetworkBatches), logging.Int("failed_batches", res.FailedBatches))
	return res
}

type batchStatus int

const (
	batchOK batchStatus = iota
	batchFailed
	batchSkipped
	batchCancelled
)

type batchOutcome struct {
	records map[string]mapping.ResolutionRecord
	status  batchStatus
	shared  bool
}

// resolveShared runs resolveOne for batch, joining an identical lookup
// already in flight.  A caller whose context ends stops waiting at once.  An
// outcome abandoned by another caller is not inherited: the lookup is
// started again under this caller's context.
func (r *Resolver) resolveShared(ctx context.Context, index int, batch []string) batchOutcome {
	key := flightKey(batch)
	for {
		ch := r.flight.DoChan(key, func() (interface{}, error) {
			return r.resolveOne(ctx, index, batch), nil
		})
		select {
		case <-ctx.Done():
			return batchOutcome{records: failAll(batch, cancelledDiagnostic(ctx)), status: batchCancelled}
		case res := <-ch:
			out := res.Val.(batchOutcome)
			if out.status == batchCancelled && ctx.Err() == nil {
				continue
			}
			out.shared = res.Shared
			return out
		}
	}
}

func flightKey(batch []string) string {
	ids := append([]string(nil), batch...)
	sort.Strings(ids)
	return strings.Join(ids, "\x00")
}

func cancelledDiagnostic(ctx context.Context) string {
	return fmt.Sprintf("%s: %v", DiagnosticCancelled, ctx.Err())
}

func (r *Resolver) resolveOne(ctx context.Context, index int, ids []string) batchOutcome {
	start := time.Now()
	authority := r.authority.Name()
	log := r.logger.WithContext(ctx).With(logging.Int("batch", index), logging.Int("size", len(ids)))

	if !r.breaker.Allow() {
		r.metrics.RecordBatch(authority, OutcomeCircuitOpen, len(ids), time.Since(start))
		log.Debug("circuit open, skipping network")
		return batchOutcome{records: failAll(ids, DiagnosticCircuitOpen), status: batchSkipped}
	}

	var entries []Entry
	err := r.retry.Do(ctx, func(ctx context.Context) error {
		if r.limiter != nil {
			if werr := r.limiter.Wait(ctx); werr != nil {
				return errors.Wrap(werr, errors.ErrCodeResolutionTimeout, "rate limiter wait aborted")
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
		got, lerr := r.authority.Lookup(attemptCtx, ids)
		if lerr != nil {
			return classifyLookupError(lerr)
		}
		entries = got
		return nil
	}, func(attempt int, lastErr error) {
		r.metrics.RecordRetry(authority)
		log.Warn("retrying authority lookup", logging.Int("attempt", attempt), logging.Err(lastErr))
	})

	if err != nil && ctx.Err() != nil {
		// Caller cancellation is not an authority failure.
		r.breaker.Release()
		r.metrics.RecordBatch(authority, OutcomeCancelled, len(ids), time.Since(start))
		diag := cancelledDiagnostic(ctx)
		log.Debug("batch abandoned by caller", logging.String("diagnostic", diag))
		return batchOutcome{records: failAll(ids, diag), status: batchCancelled}
	}
	if err != nil {
		r.breaker.RecordFailure()
		r.metrics.RecordBatch(authority, OutcomeFailed, len(ids), time.Since(start))
		diag := fmt.Sprintf("%s: %v", DiagnosticRetriesExhausted, err)
		log.WithError(err).Warn("batch degraded to obsolete", logging.String("diagnostic", diag))
		return batchOutcome{records: failAll(ids, diag), status: batchFailed}
	}

	r.breaker.RecordSuccess()
	records := ClassifyAll(ids, entries, r.scorer)
	for id, rec := range records {
		if _, perr := r.cache.PutIfAbsent(ctx, id, rec, r.cfg.CacheTTL); perr != nil {
			log.Warn("cache write failed", logging.String("id", id), logging.Err(perr))
		}
	}
	r.metrics.RecordBatch(authority, OutcomeSuccess, len(ids), time.Since(start))
	return batchOutcome{records: records, status: batchOK}
}

func failAll(ids []string, diag string) map[string]mapping.ResolutionRecord {
	out := make(map[string]mapping.ResolutionRecord, len(ids))
	for _, id := range ids {
		out[id] = FailedRecord(id, diag)
	}
	return out
}

func partition(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

//Personal.AI order the ending
