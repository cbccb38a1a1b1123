// Package ratelimit throttles per-key platform operations with a token bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limit allows Events operations per Per window, with a burst of Events.
// A zero Limit is unlimited.
type Limit struct {
	Events int
	Per    time.Duration
}

// ChannelRename is the platform's channel rename allowance.
var ChannelRename = Limit{Events: 2, Per: 10 * time.Minute}

func (l Limit) unlimited() bool { return l.Events <= 0 || l.Per <= 0 }

// perSecond returns the refill rate in tokens per second.
func (l Limit) perSecond() float64 {
	return float64(l.Events) / l.Per.Seconds()
}

// Limiter implements token bucket rate limiting per key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   Limit
	now     func() time.Time
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// New creates a limiter applying limit to every key.
func New(limit Limit) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		now:     time.Now,
	}
}

// WithClock replaces the limiter's time source.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	if l.limit.unlimited() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreateBucket(key)
	l.refill(b)

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until key may proceed or the context is cancelled. It sleeps
// until the bucket is due to hold a token rather than polling.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l.limit.unlimited() {
		return nil
	}

	for {
		if l.Allow(key) {
			return nil
		}

		timer := time.NewTimer(l.delay(key))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// delay returns how long key must wait for its next token.
func (l *Limiter) delay(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.getOrCreateBucket(key)
	l.refill(b)
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / l.limit.perSecond() * float64(time.Second))
}

func (l *Limiter) getOrCreateBucket(key string) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:   float64(l.limit.Events), // start full
			lastFill: l.now(),
		}
		l.buckets[key] = b
	}
	return b
}

func (l *Limiter) refill(b *bucket) {
	now := l.now()
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * l.limit.perSecond()
	if burst := float64(l.limit.Events); b.tokens > burst {
		b.tokens = burst
	}
	b.lastFill = now
}
