// Package ratelimit throttles mutation submissions per organization with a
// sliding window, so a burst at a window boundary cannot double the rate.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before retrying.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	wait := r.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Limiter admits or refuses one request for a key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}
