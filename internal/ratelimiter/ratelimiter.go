// Package ratelimiter throttles API requests with a token bucket.
package ratelimiter

import (
	"golang.org/x/time/rate"
)

// RateLimiter limits the request rate of the HTTP API with the token bucket
// of golang.org/x/time/rate. Bursts up to the bucket capacity are served
// immediately; afterwards requests are admitted at the sustained rate.
//
// A nil *RateLimiter admits everything, so callers need no "disabled" branch.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a limiter admitting requestsPerSecond sustained requests with
// bursts of up to burst.
//
// Special cases:
//   - requestsPerSecond = 0: returns nil (unlimited)
//   - burst = 0: the burst defaults to requestsPerSecond
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow consumes a token if one is available and reports whether the request
// may proceed. It never blocks.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Tokens returns the number of tokens currently in the bucket, as reported in
// the X-RateLimit-Remaining header. Unlimited limiters report +Inf.
func (r *RateLimiter) Tokens() float64 {
	if r == nil {
		return float64(rate.Inf)
	}
	return r.limiter.Tokens()
}
