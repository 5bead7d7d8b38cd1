package teams

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiterPassesThroughSuccess(t *testing.T) {
	l := NewRateLimiter()

	calls := 0
	err := l.Do(context.Background(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRateLimiterDoesNotRetryNonThrottleErrors(t *testing.T) {
	l := NewRateLimiter()

	calls := 0
	wantErr := &GraphError{StatusCode: 403, Code: "Forbidden"}
	err := l.Do(context.Background(), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("fn called %d times, want 1", calls)
	}
}

func TestRateLimiterRetriesThrottledRequests(t *testing.T) {
	l := &RateLimiter{
		requestsPerWindow: 100,
		window:            time.Minute,
		maxAttempts:       3,
	}

	calls := 0
	err := l.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &GraphError{StatusCode: 429, RetryAfter: time.Millisecond}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("fn called %d times, want 3", calls)
	}
}

func TestRateLimiterGivesUpAfterMaxAttempts(t *testing.T) {
	l := &RateLimiter{
		requestsPerWindow: 100,
		window:            time.Minute,
		maxAttempts:       2,
	}

	calls := 0
	throttle := &GraphError{StatusCode: 429, RetryAfter: time.Millisecond}
	err := l.Do(context.Background(), func() error {
		calls++
		return throttle
	})

	var graphErr *GraphError
	if !errors.As(err, &graphErr) || !graphErr.Throttled() {
		t.Fatalf("Do() error = %v, want throttled GraphError", err)
	}
	if calls != 2 {
		t.Errorf("fn called %d times, want 2", calls)
	}
}

func TestRateLimiterBlocksWhenWindowFull(t *testing.T) {
	l := &RateLimiter{
		requestsPerWindow: 1,
		window:            50 * time.Millisecond,
		maxAttempts:       1,
	}

	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	start := time.Now()
	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if waited := time.Since(start); waited < 25*time.Millisecond {
		t.Errorf("second acquire waited %v, expected to block until window slides", waited)
	}
}

func TestRateLimiterAcquireHonorsContext(t *testing.T) {
	l := &RateLimiter{
		requestsPerWindow: 1,
		window:            time.Hour,
		maxAttempts:       1,
	}

	if err := l.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("acquire with expired context = %v, want DeadlineExceeded", err)
	}
}
