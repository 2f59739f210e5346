package retry

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastyGranola/bioquery/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		Multiplier:   2.0,
		AddJitter:    false, // Disable for predictable tests
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		if attempts < 3 {
			return stderrors.New("connection reset")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_ExhaustsAttemptsExactly(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(3), func() error {
		attempts++
		return errors.FromStatus(http.StatusServiceUnavailable, "ep")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, errors.ErrRetryExhausted)
	// The surfaced error keeps the transient classification.
	assert.Equal(t, errors.ClassTransient, errors.ClassOf(err))
}

func TestDo_PermanentFailureAttemptedOnce(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		attempts++
		return errors.FromStatus(http.StatusNotFound, "ep")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, errors.ClassPermanent, errors.ClassOf(err))
}

func TestDo_NonRetryableMarker(t *testing.T) {
	attempts := 0
	marked := NonRetryable(stderrors.New("connection reset"))
	err := Do(context.Background(), fastPolicy(5), func() error {
		attempts++
		return marked
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, IsNonRetryable(err))
}

func TestDo_RateLimitedNotRetried(t *testing.T) {
	// The limiter handles waiting; the retry loop must not hammer.
	attempts := 0
	err := Do(context.Background(), fastPolicy(5), func() error {
		attempts++
		return errors.ErrRateLimited
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_CancelledDuringBackoff(t *testing.T) {
	policy := Policy{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := Do(ctx, policy, func() error {
		attempts++
		return stderrors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, errors.ClassTimeout, errors.ClassOf(err))
	assert.Less(t, attempts, 5)
}

func TestDo_CustomRetryableHook(t *testing.T) {
	policy := fastPolicy(3)
	policy.Retryable = func(error) bool { return false }

	attempts := 0
	err := Do(context.Background(), policy, func() error {
		attempts++
		return stderrors.New("connection reset")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_BackoffTiming(t *testing.T) {
	policy := Policy{
		MaxAttempts:  3,
		InitialDelay: 20 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Multiplier:   2.0,
	}

	start := time.Now()
	_ = Do(context.Background(), policy, func() error {
		return stderrors.New("connection reset")
	})
	// Two sleeps: 20ms + 40ms
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestDo_InvalidPolicy(t *testing.T) {
	err := Do(context.Background(), Policy{InitialDelay: -1}, func() error { return nil })
	assert.Error(t, err)

	err = Do(context.Background(), Policy{
		InitialDelay: time.Second,
		MaxDelay:     time.Millisecond,
	}, func() error { return nil })
	assert.Error(t, err)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), fastPolicy(3), func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", stderrors.New("temporary failure")
		}
		return "payload", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "payload", result)
}

func TestConservativePolicy(t *testing.T) {
	policy := Conservative()
	assert.Equal(t, 2, policy.MaxAttempts)
	assert.Less(t, policy.MaxAttempts, DefaultPolicy().MaxAttempts)
}
