package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(limit, window)
	l.now = clock.now
	return l, clock
}

func TestAllowBurstThenRefill(t *testing.T) {
	l, clock := newTestLimiter(3, time.Minute)
	for i := range 3 {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d rejected within burst", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("fourth request allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Error("other client limited by the first")
	}

	clock.advance(20 * time.Second)
	if !l.Allow("10.0.0.1") {
		t.Error("token not refilled after a third of the window")
	}
	if l.Allow("10.0.0.1") {
		t.Error("refill granted more than one token")
	}
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)
	l.Allow("a")
	clock.advance(90 * time.Second)
	l.Allow("b")
	clock.advance(60 * time.Second)
	l.sweep()
	if got := l.size(); got != 1 {
		t.Errorf("buckets after sweep = %d, want 1", got)
	}
}

func TestRetryAfter(t *testing.T) {
	if got := New(60, time.Minute).RetryAfter(); got != time.Second {
		t.Errorf("RetryAfter() = %v, want 1s", got)
	}
}
