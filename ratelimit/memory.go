package ratelimit

import (
	"context"
	"sync"
	"time"
)

var _ Limiter = (*MemoryLimiter)(nil)

// MemoryLimiter keeps the last admitted attempt per key in process memory.
// It is only suitable for a single instance.
type MemoryLimiter struct {
	mu         sync.Mutex
	lastSeen   map[string]time.Time
	window     time.Duration
	evictAfter time.Duration
	now        func() time.Time
}

type MemoryOption func(*MemoryLimiter)

func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter evicts entries older than evictAfter whenever an attempt is admitted.
func NewMemoryLimiter(window, evictAfter time.Duration, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		lastSeen:   make(map[string]time.Time),
		window:     window,
		evictAfter: evictAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastSeen[key]; ok && now.Sub(last) < l.window {
		return false, nil
	}
	l.lastSeen[key] = now
	l.cleanupLocked(now)
	return true, nil
}

// Cleanup removes entries older than the eviction age.
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanupLocked(l.now())
}

func (l *MemoryLimiter) cleanupLocked(now time.Time) {
	for key, last := range l.lastSeen {
		if now.Sub(last) > l.evictAfter {
			delete(l.lastSeen, key)
		}
	}
}

// Len reports how many keys are currently tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastSeen)
}
