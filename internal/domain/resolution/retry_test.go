package resolution

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/BioMapper/pkg/errors"
)

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.True(t, p.ShouldRetry(errors.ResolutionTimeout("x")))
	assert.True(t, p.ShouldRetry(errors.ResolutionTransport("x")))
	assert.True(t, p.ShouldRetry(errors.New(errors.ErrCodeAuthorityRateLimited, "x")))
	assert.False(t, p.ShouldRetry(errors.New(errors.ErrCodeAuthorityResponseInvalid, "x")))
	assert.False(t, p.ShouldRetry(stderrors.New("plain")))
	assert.False(t, p.ShouldRetry(nil))

	p.RetryableCodes = []errors.ErrorCode{errors.ErrCodeAuthorityResponseInvalid}
	assert.True(t, p.ShouldRetry(errors.New(errors.ErrCodeAuthorityResponseInvalid, "x")))
	assert.False(t, p.ShouldRetry(errors.ResolutionTransport("x")))
}

func TestRetryPolicy_BackoffJitterAndCap(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 2}

	for i := 0; i < 50; i++ {
		d0 := p.Backoff(0)
		assert.GreaterOrEqual(t, d0, 75*time.Millisecond)
		assert.LessOrEqual(t, d0, 125*time.Millisecond)

		d2 := p.Backoff(2)
		assert.GreaterOrEqual(t, d2, 300*time.Millisecond)
		assert.LessOrEqual(t, d2, 500*time.Millisecond)

		capped := p.Backoff(10)
		assert.LessOrEqual(t, capped, 1250*time.Millisecond)
	}
	assert.Zero(t, RetryPolicy{}.Backoff(3))
}

func TestRetryPolicy_DoRetriesUntilExhausted(t *testing.T) {
	var slept []time.Duration
	p := RetryPolicy{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond, BackoffMultiplier: 2}
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	calls, retries := 0, 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.ResolutionTransport("connection reset")
	}, func(int, error) { retries++ })

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeResolutionTransport))
	assert.Equal(t, 4, calls)
	assert.Equal(t, 3, retries)
	assert.Len(t, slept, 3)
}

func TestRetryPolicy_DoStopsOnSuccessAndNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.ResolutionTimeout("slow")
		}
		return nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New(errors.ErrCodeAuthorityResponseInvalid, "bad json")
	}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAuthorityResponseInvalid))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_DoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryPolicy{MaxRetries: 3}.Do(ctx, func(context.Context) error {
		calls++
		return nil
	}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeResolutionTimeout))
	assert.Zero(t, calls)
}

func TestClassifyLookupError(t *testing.T) {
	assert.Nil(t, classifyLookupError(nil))
	assert.True(t, errors.IsCode(classifyLookupError(context.DeadlineExceeded), errors.ErrCodeResolutionTimeout))
	assert.True(t, errors.IsCode(classifyLookupError(stderrors.New("eof")), errors.ErrCodeResolutionTransport))

	limited := errors.New(errors.ErrCodeAuthorityRateLimited, "429")
	assert.Equal(t, limited, classifyLookupError(limited))
}

//Personal.AI order the ending
