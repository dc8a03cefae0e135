package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryRateLimiter is the single-process equivalent of
// RedisRateLimiter, suitable for tests and single-instance deployments
type InMemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*countWindow
	limit   int64
	window  time.Duration
}

type countWindow struct {
	count     int64
	expiresAt time.Time
}

// NewInMemoryRateLimiter creates an in-memory fixed-window rate limiter
func NewInMemoryRateLimiter(limit int64, window time.Duration) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		windows: make(map[string]*countWindow),
		limit:   limit,
		window:  window,
	}
}

// Allow counts one hit for the key and reports whether it is within budget
func (l *InMemoryRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.expiresAt) {
		l.windows[key] = &countWindow{count: 1, expiresAt: now.Add(l.window)}
		return l.limit >= 1, nil
	}
	w.count++
	return w.count <= l.limit, nil
}

// InMemoryDedupGuard is the single-process equivalent of RedisDedupGuard
type InMemoryDedupGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewInMemoryDedupGuard creates an in-memory dedup guard
func NewInMemoryDedupGuard(ttl time.Duration) *InMemoryDedupGuard {
	return &InMemoryDedupGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// FirstSeen returns true when the key has not been seen within the TTL
func (g *InMemoryDedupGuard) FirstSeen(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if expiresAt, ok := g.seen[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)
	return true, nil
}

// InMemoryOptOutStore is the single-process equivalent of RedisOptOutStore
type InMemoryOptOutStore struct {
	mu     sync.RWMutex
	phones map[string]struct{}
}

// NewInMemoryOptOutStore creates an in-memory opt-out store
func NewInMemoryOptOutStore() *InMemoryOptOutStore {
	return &InMemoryOptOutStore{phones: make(map[string]struct{})}
}

// IsOptedOut reports whether the phone asked to stop receiving messages
func (s *InMemoryOptOutStore) IsOptedOut(ctx context.Context, phone string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, opted := s.phones[phone]
	return opted, nil
}

// MarkOptedOut records that the phone asked to stop receiving messages
func (s *InMemoryOptOutStore) MarkOptedOut(ctx context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phones[phone] = struct{}{}
	return nil
}
