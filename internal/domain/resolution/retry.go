package resolution

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"time"

	"github.com/turtacn/BioMapper/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// RetryPolicy
// ─────────────────────────────────────────────────────────────────────────────

// RetryPolicy governs how a failed batch lookup is retried.  It is a value
// object configured once and shared by every batch of a Resolver.
type RetryPolicy struct {
	MaxRetries        int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`

	// RetryableCodes lists the error codes worth another attempt.  Empty
	// means timeout, transport and rate-limit failures.
	RetryableCodes []errors.ErrorCode `mapstructure:"-" yaml:"-"`

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 retries starting at 500ms, doubling, capped at
// 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

var defaultRetryable = []errors.ErrorCode{
	errors.ErrCodeResolutionTimeout,
	errors.ErrCodeResolutionTransport,
	errors.ErrCodeAuthorityRateLimited,
}

// ShouldRetry reports whether err is eligible for another attempt.
func (p RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	codes := p.RetryableCodes
	if len(codes) == 0 {
		codes = defaultRetryable
	}
	for _, c := range codes {
		if errors.IsCode(err, c) {
			return true
		}
	}
	return false
}

// Backoff returns the delay before retry number attempt (0-based): exponential
// growth with ±25% jitter, capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	base := float64(p.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if p.MaxBackoff > 0 && base > float64(p.MaxBackoff) {
		base = float64(p.MaxBackoff)
	}
	jitter := base * 0.25 * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// Attempts returns the total number of attempts, first try included.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return 1 + p.MaxRetries
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts
// are exhausted.  onRetry, when non-nil, is called before every retry.  A
// cancelled ctx stops the loop and its error is returned wrapped as a
// ResolutionTimeout.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	var lastErr error
	for attempt := 0; attempt < p.Attempts(); attempt++ {
		if attempt > 0 {
			if onRetry != nil {
				onRetry(attempt, lastErr)
			}
			if err := p.wait(ctx, p.Backoff(attempt-1)); err != nil {
				return errors.Wrap(err, errors.ErrCodeResolutionTimeout, "retry aborted")
			}
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrCodeResolutionTimeout, "retry aborted")
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !p.ShouldRetry(err) {
			break
		}
	}
	return lastErr
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// classifyLookupError maps a raw authority error onto the resolution
// taxonomy.  Deadline expiry becomes ResolutionTimeout; anything without a
// code becomes ResolutionTransport.
func classifyLookupError(err error) error {
	if err == nil {
		return nil
	}
	if errors.GetCode(err) != errors.CodeUnknown {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeResolutionTimeout, "authority lookup timed out")
	}
	return errors.Wrap(err, errors.ErrCodeResolutionTransport, "authority lookup failed")
}

//Personal.AI order the ending
