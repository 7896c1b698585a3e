package agent

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// retrySleep is the sleep function used between attempts (injectable for tests)
var retrySleep = sleepCtx

// Retryer re-runs failed agent calls with exponential backoff and jitter.
// Context cancellation and non-agent errors are never retried.
type Retryer struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewRetryer creates a retryer with the given retry budget
func NewRetryer(maxRetries int) *Retryer {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Retryer{
		maxRetries: maxRetries,
		baseDelay:  time.Second,
		maxDelay:   30 * time.Second,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// retry budget is spent. The last error is returned on exhaustion.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !retryable(err) || attempt >= r.maxRetries {
			return lastErr
		}

		if err := retrySleep(ctx, r.delay(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

// retryable reports whether an error is worth another attempt. Every
// agent error kind qualifies: transient transport and throttle failures
// obviously, timeouts because the next attempt runs under a fresh stage
// deadline, and malformed output because the model is probabilistic.
// The kind check must come first: a timeout error wraps
// context.DeadlineExceeded, and matching on the bare context error
// would misread a stage deadline as run-level cancellation.
func retryable(err error) bool {
	if _, ok := IsAgentError(err); ok {
		return true
	}
	// Bare context errors are run-level cancellation, handled by the
	// ctx check at the top of Do.
	return false
}

func (r *Retryer) delay(attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * r.baseDelay

	// +-10% jitter
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
	if rand.Float64() < 0.5 {
		delay -= jitter
	} else {
		delay += jitter
	}

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
