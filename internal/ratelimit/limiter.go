package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per client key (a WebSocket connection or
// an HTTP client address).
type Limiter struct {
	buckets map[string]*client
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	now     func() time.Time
}

// NewLimiter allows perMinute requests per client with bursts of burst.
// A non-positive perMinute disables limiting.
func NewLimiter(perMinute int, burst int) *Limiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limiter{
		buckets: make(map[string]*client),
		rate:    r,
		burst:   burst,
		now:     time.Now,
	}
}

// bucket returns the client's bucket, creating it full on first use.
func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.buckets[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = c
	}
	c.lastSeen = l.now()
	return c.limiter
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Tokens returns the tokens currently available to key.
func (l *Limiter) Tokens(key string) float64 {
	return l.bucket(key).Tokens()
}

// Forget drops a client's bucket, e.g. when its connection closes.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
}

// Burst returns the configured burst size.
func (l *Limiter) Burst() int { return l.burst }

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep drops buckets not used for idle and returns how many were removed.
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for key, c := range l.buckets {
		if c.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
			removed++
		}
	}
	return removed
}

// Cleanup sweeps idle buckets every interval until ctx is done.
func (l *Limiter) Cleanup(ctx context.Context, interval, idle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Sweep(idle)
		}
	}
}
