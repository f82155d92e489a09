package email

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls the frequency of requests to the email provider.
type RateLimiter struct {
	// main limiter: provider ceiling is 2 req/sec
	limiter *rate.Limiter

	// additional hold after a 429 with Retry-After
	retryAfterUntil time.Time
	mu              sync.Mutex
}

// NewRateLimiter creates a rate limiter for the provider API.
// rps - requests per second, burst - allowed burst
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// DefaultRateLimiter returns a limiter matching the provider's documented
// throughput ceiling.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(2.0, 1)
}

// Wait blocks until the next request is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.retryAfterUntil
	r.mu.Unlock()

	// if a retry-after hold is active - wait for it
	if time.Now().Before(waitUntil) {
		select {
		case <-time.After(time.Until(waitUntil)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetRetryAfter sets a pause after a 429 response.
func (r *RateLimiter) SetRetryAfter(seconds int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.retryAfterUntil = time.Now().Add(time.Duration(seconds) * time.Second)
}
