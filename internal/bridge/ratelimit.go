package bridge

import (
	"context"
	"strings"
	"sync"
	"time"
)

// limiter spaces REST calls per endpoint family with token buckets so bursts
// from the panel do not trip Discord's rate limits.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

func newLimiter() *limiter {
	return &limiter{buckets: make(map[string]*bucket)}
}

func (l *limiter) wait(ctx context.Context, endpoint string) error {
	delay := l.reserve(endpoint)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *limiter) reserve(endpoint string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.buckets[endpoint]
	if b == nil {
		capacity, refill := limitsFor(endpoint)
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refill, lastRefill: time.Now()}
		l.buckets[endpoint] = b
	}

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = minFloat(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return 0
	}
	delay := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	b.tokens = 0
	return delay
}

func limitsFor(endpoint string) (capacity, refillPerSecond float64) {
	switch {
	case strings.Contains(endpoint, "messages"):
		return 5, 1
	case strings.Contains(endpoint, "members"):
		return 10, 1
	default:
		return 5, 2.5
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
