package service

import (
	"context"
	"sync"
	"time"
)

// Limiter admits or denies one call for key.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// bucket tracks the token balance for a single key.
type bucket struct {
	tokens    float64
	lastCheck time.Time
}

const defaultPruneInterval = time.Minute

// TokenBucketLimiter is an in-process token bucket keyed by string.
type TokenBucketLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	capacity  float64
	refill    float64 // tokens per second
	now       func() time.Time
	lastPrune time.Time
}

// LimiterOption configures a TokenBucketLimiter.
type LimiterOption func(*TokenBucketLimiter)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *TokenBucketLimiter) {
		l.now = now
	}
}

func NewTokenBucketLimiter(capacity, refillPerSec float64, opts ...LimiterOption) *TokenBucketLimiter {
	l := &TokenBucketLimiter{
		buckets:  make(map[string]*bucket),
		capacity: capacity,
		refill:   refillPerSec,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastPrune = l.now()
	return l
}

func (l *TokenBucketLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybePrune(now)

	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: l.capacity, lastCheck: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
	}
	b.lastCheck = now

	if b.tokens < 1 {
		return false
	}

	b.tokens--
	return true
}

// Len reports the number of tracked keys.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// maybePrune drops buckets that have refilled completely. Such a bucket
// behaves exactly like a new one, so dropping it changes nothing.
func (l *TokenBucketLimiter) maybePrune(now time.Time) {
	if now.Sub(l.lastPrune) < defaultPruneInterval {
		return
	}
	l.lastPrune = now

	for key, b := range l.buckets {
		if l.refill <= 0 {
			continue
		}
		full := b.tokens + now.Sub(b.lastCheck).Seconds()*l.refill
		if full >= l.capacity {
			delete(l.buckets, key)
		}
	}
}
