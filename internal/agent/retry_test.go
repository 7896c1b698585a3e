package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := retrySleep
	retrySleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	t.Cleanup(func() { retrySleep = orig })
	return &slept
}

func TestRetryer_RetriesAgentErrors(t *testing.T) {
	slept := stubSleep(t)

	calls := 0
	err := NewRetryer(2).Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &Error{Kind: ErrTransport, Op: "verify", Err: errors.New("connection reset")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(*slept) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %d", len(*slept))
	}
}

func TestRetryer_RetriesStageTimeouts(t *testing.T) {
	slept := stubSleep(t)

	// A stage deadline surfaces as a timeout-kind error wrapping
	// context.DeadlineExceeded; the wrapped context error must not
	// disqualify it from the retry policy.
	calls := 0
	err := NewRetryer(2).Do(context.Background(), func() error {
		calls++
		return classify("verify", fmt.Errorf("Post \"/v1/chat\": %w", context.DeadlineExceeded))
	})
	agentErr, ok := IsAgentError(err)
	if !ok || agentErr.Kind != ErrTimeout {
		t.Fatalf("expected a timeout agent error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("timeouts follow the retry policy: expected 3 attempts, got %d", calls)
	}
	if len(*slept) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %d", len(*slept))
	}
}

func TestRetryer_ExhaustionReturnsLastError(t *testing.T) {
	stubSleep(t)

	wantErr := &Error{Kind: ErrRateLimited, Op: "draft", Err: errors.New("429")}
	calls := 0
	err := NewRetryer(1).Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if calls != 2 {
		t.Errorf("expected initial attempt plus 1 retry, got %d", calls)
	}
	agentErr, ok := IsAgentError(err)
	if !ok || agentErr.Kind != ErrRateLimited {
		t.Fatalf("expected the last agent error back, got %v", err)
	}
}

func TestRetryer_ContextCancellationNotRetried(t *testing.T) {
	stubSleep(t)

	calls := 0
	err := NewRetryer(3).Do(context.Background(), func() error {
		calls++
		return context.Canceled
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("cancellation must not be retried, got %d attempts", calls)
	}
}

func TestRetryer_NonAgentErrorNotRetried(t *testing.T) {
	stubSleep(t)

	calls := 0
	err := NewRetryer(3).Do(context.Background(), func() error {
		calls++
		return errors.New("programming error")
	})
	if err == nil || calls != 1 {
		t.Fatalf("plain errors must fail fast, got %d attempts, err %v", calls, err)
	}
}

func TestRetryer_DelayGrowsAndIsCapped(t *testing.T) {
	r := NewRetryer(5)

	prev := time.Duration(0)
	for attempt := 0; attempt < 4; attempt++ {
		d := r.delay(attempt)
		if d <= 0 {
			t.Fatalf("attempt %d: non-positive delay %v", attempt, d)
		}
		if d > r.maxDelay {
			t.Fatalf("attempt %d: delay %v exceeds cap %v", attempt, d, r.maxDelay)
		}
		// Jitter is +-10%, so successive delays still grow.
		if d <= prev && prev < r.maxDelay {
			t.Errorf("attempt %d: delay %v did not grow past %v", attempt, d, prev)
		}
		prev = d
	}
}
