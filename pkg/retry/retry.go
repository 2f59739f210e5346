// Package retry provides exponential backoff retry logic for transient
// upstream failures.
package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tastyGranola/bioquery/errors"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried regardless of
// classification.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable.
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return stderrors.As(err, &nre)
}

// Policy provides retry configuration for one endpoint.
type Policy struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`   // Total attempts including the first (0 = run once)
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"` // Base delay between attempts
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`         // Cap on the backoff delay
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`       // Backoff multiplier (typically 2.0)
	AddJitter    bool          `json:"add_jitter" yaml:"add_jitter"`       // Randomize delays to prevent thundering herd

	// Retryable decides whether a failure may be re-attempted. Defaults to
	// errors.IsRetryable, so only transient classifications are retried.
	Retryable func(error) bool `json:"-" yaml:"-"`
}

// DefaultPolicy returns sensible defaults for upstream calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Conservative returns a policy for endpoints with strict upstream quotas,
// where retry amplification during an outage must stay minimal.
func Conservative() Policy {
	return Policy{
		MaxAttempts:  2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Do executes fn with exponential backoff retry.
func Do(ctx context.Context, policy Policy, fn func() error) error {
	if policy.InitialDelay < 0 {
		return stderrors.New("retry: InitialDelay cannot be negative")
	}
	if policy.MaxDelay < 0 {
		return stderrors.New("retry: MaxDelay cannot be negative")
	}
	if policy.Multiplier < 0 {
		return stderrors.New("retry: Multiplier cannot be negative")
	}
	// Prevent overflow with extremely large multipliers
	if policy.Multiplier > 1000 {
		policy.Multiplier = 1000
	}

	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1 // At least try once
	}
	if policy.InitialDelay == 0 {
		policy.InitialDelay = 100 * time.Millisecond
	}
	if policy.MaxDelay == 0 {
		policy.MaxDelay = 5 * time.Second
	}
	if policy.Multiplier == 0 {
		policy.Multiplier = 2.0
	}
	if policy.MaxDelay < policy.InitialDelay {
		return stderrors.New("retry: MaxDelay must be >= InitialDelay")
	}

	retryable := policy.Retryable
	if retryable == nil {
		retryable = errors.IsRetryable
	}

	var lastErr error
	delay := policy.InitialDelay

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// Permanent failures and explicit markers propagate immediately.
		if IsNonRetryable(err) || !retryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return errors.WrapTimeout(ctx.Err(), "retry", "Do",
				fmt.Sprintf("cancelled before attempt %d", attempt))
		}

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		sleepDuration := delay
		if policy.AddJitter && delay >= 4 {
			// Add up to 25% jitter using thread-safe random
			randMu.Lock()
			jitter := time.Duration(randSource.Int63n(int64(delay / 4)))
			randMu.Unlock()
			sleepDuration = delay + jitter
		}

		// Sleep with context cancellation support; a parent deadline firing
		// mid-backoff cancels the remaining attempts.
		timer := time.NewTimer(sleepDuration)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.WrapTimeout(ctx.Err(), "retry", "Do",
				fmt.Sprintf("cancelled during backoff for attempt %d", attempt+1))
		case <-timer.C:
		}

		// Calculate next delay with overflow protection
		nextDelay := float64(delay) * policy.Multiplier
		if nextDelay > float64(policy.MaxDelay) {
			delay = policy.MaxDelay
		} else {
			delay = time.Duration(nextDelay)
		}
	}

	return &errors.ClassifiedError{
		Class:   errors.ClassOf(lastErr),
		Err:     fmt.Errorf("%w after %d attempts: %w", errors.ErrRetryExhausted, policy.MaxAttempts, lastErr),
		Message: fmt.Sprintf("retry failed after %d attempts: %v", policy.MaxAttempts, lastErr),
	}
}

// DoWithResult executes fn with retry and returns both result and error.
func DoWithResult[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
