// Package rate throttles repeated attempts per key in fixed windows.
package rate

import (
	"sync"
	"time"
)

type Limiter interface {
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

type MemoryLimiter struct {
	mu    sync.Mutex
	now   func() time.Time
	store map[string]*bucket
	calls int
}

type bucket struct {
	count   int
	resetAt time.Time
	window  time.Duration
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{now: time.Now, store: make(map[string]*bucket)}
}

// Allow counts one attempt for key and reports whether it fits in the
// current window, plus the time until the window resets. A limit of zero or
// less disables limiting.
func (m *MemoryLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 {
		return true, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.calls++
	if m.calls%256 == 0 {
		m.pruneLocked(now)
	}

	b, ok := m.store[key]
	if !ok || now.After(b.resetAt) || b.window != window {
		b = &bucket{count: 0, resetAt: now.Add(window), window: window}
		m.store[key] = b
	}

	if b.count >= limit {
		return false, b.resetAt.Sub(now)
	}

	b.count++
	return true, b.resetAt.Sub(now)
}

func (m *MemoryLimiter) pruneLocked(now time.Time) {
	for key, b := range m.store {
		if now.After(b.resetAt) {
			delete(m.store, key)
		}
	}
}
