package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"CandleFeed/internal/domain/models"
)

// fakeClock drives the limiter deterministically.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestLimiter(maxWait time.Duration) (*Limiter, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(maxWait)
	l.now = clk.now
	l.sleep = func(_ context.Context, d time.Duration) error {
		clk.t = clk.t.Add(d)
		return nil
	}
	return l, clk
}

func TestAllowExhaustsQuota(t *testing.T) {
	l, _ := newTestLimiter(0)
	l.Register("alphavantage", models.Quota{Calls: 5, Window: time.Minute})

	for i := 0; i < 5; i++ {
		if !l.Allow("alphavantage") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if l.Allow("alphavantage") {
		t.Fatalf("6th call should be rejected")
	}
}

func TestAcquireFailsFastBeyondMaxWait(t *testing.T) {
	l, _ := newTestLimiter(2 * time.Second)
	l.Register("alphavantage", models.Quota{Calls: 5, Window: time.Minute})

	for i := 0; i < 5; i++ {
		if err := l.Acquire(context.Background(), "alphavantage"); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	// Refill is 5/60s: next token needs 12s, far past the 2s bound.
	err := l.Acquire(context.Background(), "alphavantage")
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestAcquireWaitsWithinBound(t *testing.T) {
	l, clk := newTestLimiter(3 * time.Second)
	l.Register("binance", models.Quota{Calls: 1, Window: time.Second})

	if err := l.Acquire(context.Background(), "binance"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	start := clk.t
	if err := l.Acquire(context.Background(), "binance"); err != nil {
		t.Fatalf("second acquire should wait for refill: %v", err)
	}
	if clk.t.Sub(start) < time.Second {
		t.Fatalf("expected a waited refill, advanced only %v", clk.t.Sub(start))
	}
}

func TestRefillRestoresTokens(t *testing.T) {
	l, clk := newTestLimiter(0)
	l.Register("kraken", models.Quota{Calls: 2, Window: 2 * time.Second})

	if !l.Allow("kraken") || !l.Allow("kraken") {
		t.Fatalf("initial burst should pass")
	}
	if l.Allow("kraken") {
		t.Fatalf("bucket should be empty")
	}
	clk.t = clk.t.Add(time.Second) // refills one token at 1/s
	if !l.Allow("kraken") {
		t.Fatalf("expected token after refill window")
	}
}

func TestUnregisteredProviderUnlimited(t *testing.T) {
	l, _ := newTestLimiter(0)
	if err := l.Acquire(context.Background(), "unknown"); err != nil {
		t.Fatalf("unregistered ids are not limited: %v", err)
	}
}
