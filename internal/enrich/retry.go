package enrich

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"
)

// RetryPolicy governs how a stage call is retried. One policy is
// applied uniformly around every external call.
type RetryPolicy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // backoff ceiling
	Multiplier  float64       // exponential growth factor
	Jitter      bool          // randomize each delay to avoid thundering herds
}

// DefaultRetryPolicy matches the stage retry budget: 3 attempts with
// exponential backoff and jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      true,
	}
}

// Do runs fn under the policy. Only *StageError values reporting
// Retryable() are retried; anything else returns immediately. The
// last error is returned after the attempt budget is exhausted.
func (p RetryPolicy) Do(ctx context.Context, stage string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Printf("stage %s succeeded on attempt %d", stage, attempt)
			}
			return nil
		}
		lastErr = err

		var se *StageError
		if !errors.As(err, &se) || !se.Retryable() {
			return err
		}
		if attempt == attempts {
			break
		}
		if ctx.Err() != nil {
			return lastErr
		}

		wait := delay
		if p.Jitter {
			wait = delay/2 + time.Duration(rand.Int63n(int64(delay/2)+1))
		}
		log.Printf("stage %s attempt %d/%d failed (%s), retrying in %v", stage, attempt, attempts, se.Kind, wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return lastErr
		}

		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return lastErr
}
