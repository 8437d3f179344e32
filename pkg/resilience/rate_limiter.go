package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiterConfig holds configuration for a rate limiter
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained refill rate of the bucket
	RequestsPerSecond float64
	// Burst is the bucket capacity
	Burst int
}

// RateLimiter is a named token-bucket limiter. It is the only
// persistent mutable state in the request path; rate.Limiter
// serializes its own token accounting.
type RateLimiter struct {
	name    string
	limiter *rate.Limiter
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(name string, config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = int(config.RequestsPerSecond)
		if config.Burst < 1 {
			config.Burst = 1
		}
	}
	return &RateLimiter{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}
}

// Name returns the limiter's name
func (r *RateLimiter) Name() string { return r.name }

// CheckLimit reports whether a request may proceed right now,
// consuming a token if so.
func (r *RateLimiter) CheckLimit() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx ends.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
