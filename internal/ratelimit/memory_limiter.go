package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a sliding-window limiter held entirely in process memory.
// It is the fallback when Redis is not configured.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an in-memory limiter implementation.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
	}
}

// Check enforces a sliding-window limit for the provided key.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	recent := m.buckets[key][:0]
	for _, ts := range m.buckets[key] {
		if ts.After(windowStart) {
			recent = append(recent, ts)
		}
	}

	allowed := len(recent) < limit
	if allowed {
		recent = append(recent, now)
	}
	m.buckets[key] = recent

	remaining := limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now.Add(window)
	if len(recent) > 0 {
		resetAt = recent[0].Add(window)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
