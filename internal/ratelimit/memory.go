package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryLimiter implements a per-key sliding window in process memory.
// Not distributed; use the Redis limiter when running more than one replica.
type InMemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
}

func NewInMemoryLimiter(limit int, window time.Duration) *InMemoryLimiter {
	return &InMemoryLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

func (l *InMemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	bucket := l.buckets[key]
	if bucket == nil {
		bucket = &slidingWindow{}
		l.buckets[key] = bucket
	}
	bucket.cleanup(now.Add(-l.window))

	if len(bucket.timestamps) >= l.limit {
		return Result{
			Allowed: false,
			Limit:   l.limit,
			ResetAt: bucket.timestamps[0].Add(l.window),
		}, nil
	}

	bucket.timestamps = append(bucket.timestamps, now)
	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(bucket.timestamps),
		ResetAt:   bucket.timestamps[0].Add(l.window),
	}, nil
}

// cleanup drops timestamps older than the cutoff. Must hold the lock.
func (w *slidingWindow) cleanup(cutoff time.Time) {
	i := 0
	for ; i < len(w.timestamps); i++ {
		if w.timestamps[i].After(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}
