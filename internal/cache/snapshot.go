// Package cache provides an in-process snapshot cache with stale-while-refresh semantics.
package cache

import (
	"strings"
	"sync"
	"time"
)

const (
	// DefaultStaleAfter is the age after which an entry is reported stale.
	DefaultStaleAfter = 60 * time.Second

	// DefaultExpireAfter is the age after which Sweep drops an entry.
	DefaultExpireAfter = 10 * time.Minute
)

type entry[T any] struct {
	value     T
	fetchedAt time.Time
}

type settings struct {
	staleAfter  time.Duration
	expireAfter time.Duration
	now         func() time.Time
}

// Option configures a Snapshot.
type Option func(*settings)

// WithStaleAfter sets the age after which entries are reported stale.
func WithStaleAfter(d time.Duration) Option {
	return func(s *settings) {
		s.staleAfter = d
	}
}

// WithExpireAfter sets the age after which Sweep removes entries.
func WithExpireAfter(d time.Duration) Option {
	return func(s *settings) {
		s.expireAfter = d
	}
}

// WithClock overrides the time source (for tests).
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// Snapshot caches values by key. Entries older than the stale age are still
// returned, flagged stale, so callers can serve them while refreshing.
// Safe for concurrent use.
type Snapshot[T any] struct {
	mu      sync.RWMutex
	entries map[string]entry[T]
	cfg     settings
}

// New creates an empty Snapshot. Zero or negative durations use the defaults.
func New[T any](opts ...Option) *Snapshot[T] {
	cfg := settings{
		staleAfter:  DefaultStaleAfter,
		expireAfter: DefaultExpireAfter,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.staleAfter <= 0 {
		cfg.staleAfter = DefaultStaleAfter
	}
	if cfg.expireAfter < cfg.staleAfter {
		cfg.expireAfter = max(DefaultExpireAfter, cfg.staleAfter)
	}

	return &Snapshot[T]{
		entries: make(map[string]entry[T]),
		cfg:     cfg,
	}
}

// Get returns the cached value for key.
// ok is false when nothing is cached; stale is true once the entry is older than the stale age.
func (s *Snapshot[T]) Get(key string) (value T, ok, stale bool) {
	s.mu.RLock()
	e, found := s.entries[key]
	s.mu.RUnlock()

	if !found {
		return value, false, false
	}
	return e.value, true, s.cfg.now().Sub(e.fetchedAt) > s.cfg.staleAfter
}

// Set stores value under key with the current time.
func (s *Snapshot[T]) Set(key string, value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry[T]{value: value, fetchedAt: s.cfg.now()}
}

// Invalidate removes key.
func (s *Snapshot[T]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// InvalidatePrefix removes every key starting with prefix and returns how many were removed.
func (s *Snapshot[T]) InvalidatePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Sweep removes entries older than the expiry age and returns how many were removed.
func (s *Snapshot[T]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.cfg.now()
	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.fetchedAt) > s.cfg.expireAfter {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (s *Snapshot[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
