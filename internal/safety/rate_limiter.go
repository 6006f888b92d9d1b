package safety

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound venue calls with a token bucket
type RateLimiter struct {
	name    string
	limiter *rate.Limiter
}

// NewRateLimiter allows perSecond calls with the given burst. A non-positive
// rate disables limiting.
func NewRateLimiter(name string, perSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{name: name, limiter: rate.NewLimiter(limit, burst)}
}

// Allow reports whether a call may proceed now
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter %s: %w", rl.name, err)
	}
	return nil
}

// Limit returns the configured calls per second
func (rl *RateLimiter) Limit() float64 {
	return float64(rl.limiter.Limit())
}
