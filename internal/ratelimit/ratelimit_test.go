package ratelimit

import (
	"testing"
	"time"
)

// fixedClock lets tests advance time manually.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(maxCalls int, window time.Duration) (*Limiter, *fixedClock) {
	l := New(maxCalls, window)
	clock := &fixedClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l.now = clock.now
	return l, clock
}

func TestAllow_WithinLimit(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow(1) {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if l.Allow(1) {
		t.Fatal("fourth call should be rejected")
	}
}

func TestAllow_WindowSlides(t *testing.T) {
	t.Parallel()
	l, clock := newTestLimiter(2, time.Minute)
	l.Allow(1)
	l.Allow(1)
	if l.Allow(1) {
		t.Fatal("third call inside window should be rejected")
	}
	clock.advance(61 * time.Second)
	if !l.Allow(1) {
		t.Fatal("call after window expiry should be allowed")
	}
}

func TestAllow_PerUserIsolation(t *testing.T) {
	t.Parallel()
	l, _ := newTestLimiter(1, time.Minute)
	if !l.Allow(1) {
		t.Fatal("first user's call should be allowed")
	}
	if !l.Allow(2) {
		t.Fatal("second user's call should be allowed")
	}
	if l.Allow(1) {
		t.Fatal("first user's second call should be rejected")
	}
}

func TestAllow_RejectedCallsDoNotExtendWindow(t *testing.T) {
	t.Parallel()
	l, clock := newTestLimiter(1, time.Minute)
	l.Allow(1)
	// Hammering while limited must not push the recovery point forward.
	for i := 0; i < 5; i++ {
		clock.advance(10 * time.Second)
		l.Allow(1)
	}
	clock.advance(11 * time.Second)
	if !l.Allow(1) {
		t.Fatal("call after the original window should be allowed")
	}
}

func TestNew_PanicsOnBadArgs(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive maxCalls")
		}
	}()
	New(0, time.Minute)
}
