// Package symbolcache remembers which token symbols were alerted recently.
package symbolcache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the alert suppression window.
const DefaultTTL = 72 * time.Hour

// Cache reports whether a symbol was seen within the TTL and records it when not.
type Cache interface {
	Exists(ctx context.Context, symbol string) (bool, error)
}

var (
	_ Cache = (*Memory)(nil)
	_ Cache = (*Redis)(nil)
)

// Memory is a process-local Cache.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// MemoryOption customises a Memory cache.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory builds an in-memory cache. A non-positive ttl falls back to DefaultTTL.
func NewMemory(ttl time.Duration, opts ...MemoryOption) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Memory{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exists returns true when symbol was recorded less than ttl ago. Otherwise it
// records the current time and returns false. A hit does not refresh the entry.
func (m *Memory) Exists(_ context.Context, symbol string) (bool, error) {
	key := normalize(symbol)
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if recorded, ok := m.entries[key]; ok && now.Sub(recorded) < m.ttl {
		return true, nil
	}
	m.entries[key] = now
	return false, nil
}

// Prune drops entries older than the ttl and returns how many were removed.
func (m *Memory) Prune(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, recorded := range m.entries {
		if now.Sub(recorded) >= m.ttl {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked symbols.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func normalize(symbol string) string {
	return strings.TrimSpace(symbol)
}
