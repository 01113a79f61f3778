package ratelimit

import (
	"context"
	"sync"
	"time"

	"CandleFeed/internal/domain/models"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// refill tops the bucket up for the elapsed time. Caller holds the lock.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
}

// Limiter is a per-provider token bucket. Buckets are registered once from
// provider descriptors; Acquire blocks at most maxWait before failing with
// models.ErrRateLimited so callers can move to the next provider instead of
// queuing indefinitely.
type Limiter struct {
	mu      sync.Mutex
	m       map[string]*bucket
	maxWait time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter with the given bounded wait for Acquire.
func New(maxWait time.Duration) *Limiter {
	return &Limiter{
		m:       make(map[string]*bucket),
		maxWait: maxWait,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Register creates the bucket for a provider. A full bucket is granted up
// front so a fresh process can burst to the quota.
func (l *Limiter) Register(id string, q models.Quota) {
	l.mu.Lock()
	defer l.mu.Unlock()
	capacity := float64(q.Calls)
	if capacity <= 0 {
		capacity = 1
	}
	l.m[id] = &bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: q.RefillPerSec(),
		last:       l.now(),
	}
}

// Allow consumes one token for id if immediately available.
func (l *Limiter) Allow(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[id]
	if !ok {
		return true
	}
	b.refill(l.now())
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Acquire consumes one token for id, waiting up to the configured max wait
// for a refill. Past the bound it fails with models.ErrRateLimited.
func (l *Limiter) Acquire(ctx context.Context, id string) error {
	l.mu.Lock()
	b, ok := l.m[id]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	now := l.now()
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		l.mu.Unlock()
		return nil
	}

	var wait time.Duration
	if b.refillRate > 0 {
		wait = time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	}
	l.mu.Unlock()

	if b.refillRate <= 0 || wait > l.maxWait {
		return models.ErrRateLimited
	}
	if err := l.sleep(ctx, wait); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	b.refill(l.now())
	if b.tokens >= 1 {
		b.tokens--
		return nil
	}
	return models.ErrRateLimited
}

// Tokens reports the current token count for id, for the status endpoint.
func (l *Limiter) Tokens(id string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[id]
	if !ok {
		return 0
	}
	b.refill(l.now())
	return b.tokens
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
