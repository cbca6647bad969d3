package resilient

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(breaker BreakerConfig) (*Executor, *[]time.Duration) {
	e := NewExecutor(breaker, nil)
	slept := &[]time.Duration{}
	e.sleep = func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
	e.randF = func() float64 { return 0 } // без джиттера, задержки детерминированы
	return e, slept
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	e, slept := newTestExecutor(DefaultBreakerConfig())

	calls := 0
	err := e.Do(context.Background(), "feed", DefaultPolicy(), func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	e, slept := newTestExecutor(DefaultBreakerConfig())

	calls := 0
	err := e.Do(context.Background(), "feed", DefaultPolicy(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Transientf("rate limited")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// delay = base*2^i: 1s, 2s
	require.Len(t, *slept, 2)
	assert.Equal(t, time.Second, (*slept)[0])
	assert.Equal(t, 2*time.Second, (*slept)[1])
}

func TestDoAttemptCountBounded(t *testing.T) {
	e, _ := newTestExecutor(BreakerConfig{Threshold: 100, Cooldown: time.Minute})

	p := DefaultPolicy()
	p.MaxRetries = 4

	calls := 0
	err := e.Do(context.Background(), "feed", p, func(ctx context.Context) error {
		calls++
		return Transientf("boom")
	})

	assert.Equal(t, p.MaxRetries+1, calls)

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, p.MaxRetries+1, exhausted.Attempts)
	assert.True(t, IsTransient(exhausted.Last))
}

func TestDoPermanentErrorNotRetried(t *testing.T) {
	e, slept := newTestExecutor(DefaultBreakerConfig())

	calls := 0
	err := e.Do(context.Background(), "broker", DefaultPolicy(), func(ctx context.Context) error {
		calls++
		return Permanentf("unknown symbol XYZ")
	})

	assert.Equal(t, 1, calls)
	assert.True(t, IsPermanent(err))
	assert.Empty(t, *slept)
}

func TestDelayWithinBounds(t *testing.T) {
	p := Policy{
		BaseDelay:      time.Second,
		MaxDelay:       8 * time.Second,
		JitterFraction: 0.5,
	}

	e := NewExecutor(DefaultBreakerConfig(), nil)
	for attempt := 0; attempt < 6; attempt++ {
		for i := 0; i < 50; i++ {
			d := e.delay(p, attempt)

			base := time.Duration(float64(p.BaseDelay) * float64(int(1)<<attempt))
			if base > p.MaxDelay {
				base = p.MaxDelay
			}
			upper := time.Duration(float64(base) * (1 + p.JitterFraction))
			if upper > p.MaxDelay {
				upper = p.MaxDelay
			}

			assert.GreaterOrEqual(t, d, base, "attempt %d", attempt)
			assert.LessOrEqual(t, d, upper, "attempt %d", attempt)
		}
	}
}

func TestDoTimeoutCountsAsFailure(t *testing.T) {
	e, _ := newTestExecutor(BreakerConfig{Threshold: 2, Cooldown: time.Minute})

	p := DefaultPolicy()
	p.MaxRetries = 1
	p.Timeout = 10 * time.Millisecond

	err := e.Do(context.Background(), "feed", p, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.True(t, errors.Is(exhausted.Last, context.DeadlineExceeded))

	state, _ := e.CircuitState("feed")
	assert.Equal(t, StateOpen, state)
}

func TestCallReturnsValue(t *testing.T) {
	e, _ := newTestExecutor(DefaultBreakerConfig())

	v, err := Call(context.Background(), e, "feed", DefaultPolicy(), func(ctx context.Context) (float64, error) {
		return 101.5, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 101.5, v)
}

func TestDoRespectsCustomPredicate(t *testing.T) {
	e, _ := newTestExecutor(DefaultBreakerConfig())

	p := DefaultPolicy()
	p.Retryable = func(err error) bool { return false }

	calls := 0
	err := e.Do(context.Background(), "broker", p, func(ctx context.Context) error {
		calls++
		return Transientf("would normally retry")
	})

	assert.Equal(t, 1, calls)
	assert.True(t, IsTransient(err))
}
