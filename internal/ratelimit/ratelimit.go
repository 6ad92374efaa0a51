// Package ratelimit is a per-user sliding-window limiter for inbound
// Telegram updates.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks call timestamps per user and rejects callers that exceed
// maxCalls within the window. Safe for concurrent use.
type Limiter struct {
	maxCalls int
	window   time.Duration

	mu    sync.Mutex
	calls map[int64][]time.Time
	now   func() time.Time
}

// New creates a Limiter. Panics on non-positive limits.
func New(maxCalls int, window time.Duration) *Limiter {
	if maxCalls <= 0 || window <= 0 {
		panic("ratelimit: maxCalls and window must be > 0")
	}
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		calls:    make(map[int64][]time.Time),
		now:      time.Now,
	}
}

// Allow records one call for userID and reports whether it is within the
// limit.
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.calls[userID][:0]
	for _, t := range l.calls[userID] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.maxCalls {
		l.calls[userID] = kept
		return false
	}
	l.calls[userID] = append(kept, now)
	return true
}
