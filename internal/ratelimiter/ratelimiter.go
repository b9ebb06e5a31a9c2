// Package ratelimiter throttles protocol service calls with a token bucket.
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limiter admits calls at a sustained rate with bursts. A nil *Limiter
// admits everything, so callers need not check whether limiting is
// configured.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a limiter admitting requestsPerSecond calls per second with
// bursts of up to burst calls. A zero rate disables limiting and returns
// nil. A zero burst defaults to the rate.
func New(requestsPerSecond, burst uint) *Limiter {
	if requestsPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = requestsPerSecond
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))}
}

// Allow reports whether a call may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Wait blocks until a call may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// SetLimit changes the sustained rate. The burst is kept.
func (l *Limiter) SetLimit(requestsPerSecond uint) {
	if l == nil {
		return
	}
	l.limiter.SetLimit(rate.Limit(requestsPerSecond))
}

// Tokens returns the tokens currently available.
func (l *Limiter) Tokens() float64 {
	if l == nil {
		return 0
	}
	return l.limiter.Tokens()
}
