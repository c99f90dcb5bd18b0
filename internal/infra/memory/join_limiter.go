package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

// JoinLimiter is a sliding-window limiter. Timestamps older than the window are pruned lazily on
// each attempt for the key being checked.
type JoinLimiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	events map[string][]time.Time
}

func NewJoinLimiter(limit int, window time.Duration) *JoinLimiter {
	return &JoinLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Admit records now under key and returns true when fewer than limit admissions fall in the window.
func (l *JoinLimiter) Admit(_ context.Context, key string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	kept := l.events[key][:0]
	for _, ts := range l.events[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.events[key] = kept
		return false, nil
	}
	l.events[key] = append(kept, now)
	return true, nil
}

// ForgetRoom drops the history of every source address for a disposed room. Keys are
// "<code>|<ip>".
func (l *JoinLimiter) ForgetRoom(code string) {
	prefix := code + "|"
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.events {
		if strings.HasPrefix(key, prefix) {
			delete(l.events, key)
		}
	}
}

// Keys reports how many keys currently hold history.
func (l *JoinLimiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}
