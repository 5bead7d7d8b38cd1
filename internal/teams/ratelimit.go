package teams

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"teamsmcp/pkg/logging"
)

// Microsoft Graph allows roughly 10k requests per 10 minutes per app per
// tenant for chat APIs; the limiter stays under that and backs off when
// Graph answers 429 anyway.
const (
	defaultRequestsPerWindow = 10000
	defaultWindow            = 10 * time.Minute
	defaultMaxAttempts       = 3
)

// RateLimiter enforces a sliding-window request budget and retries
// throttled requests with exponential backoff, honoring Retry-After.
type RateLimiter struct {
	mu       sync.Mutex
	requests []time.Time

	requestsPerWindow int
	window            time.Duration
	maxAttempts       int
}

// NewRateLimiter creates a limiter with the Graph defaults.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		requestsPerWindow: defaultRequestsPerWindow,
		window:            defaultWindow,
		maxAttempts:       defaultMaxAttempts,
	}
}

// acquire blocks until a request slot is available or the context ends.
func (l *RateLimiter) acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()

		// Drop requests that left the window.
		cutoff := now.Add(-l.window)
		kept := l.requests[:0]
		for _, ts := range l.requests {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		l.requests = kept

		if len(l.requests) < l.requestsPerWindow {
			l.requests = append(l.requests, now)
			l.mu.Unlock()
			return nil
		}

		wait := l.requests[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		logging.Warn("Teams", "Rate limit window full, waiting %v", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Do runs fn under the rate limit, retrying up to maxAttempts times when
// Graph throttles with 429. Other failures are returned as-is.
func (l *RateLimiter) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if err := l.acquire(ctx); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		var graphErr *GraphError
		if !errors.As(err, &graphErr) || !graphErr.Throttled() {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		if graphErr.RetryAfter > 0 {
			wait = graphErr.RetryAfter
		}

		logging.Warn("Teams", "Graph throttled request (attempt %d/%d), retrying in %v", attempt+1, l.maxAttempts, wait)
		lastErr = err

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}
