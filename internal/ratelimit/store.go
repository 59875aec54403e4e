// Package ratelimit keeps fixed-window hit counters for request throttling.
package ratelimit

import (
	"sync"
	"time"
)

// Store is a keyed counter store. Hit increments and reads a counter in one
// step, so concurrent requests for the same key cannot lose updates.
type Store interface {
	// Hit records one attempt against key. A key with no live window starts
	// a new one lasting decay. It returns the count within the window and
	// the time the window resets.
	Hit(key string, decay time.Duration) (count int, resetAt time.Time)
	// Attempts returns the current count for key, zero when expired
	Attempts(key string) int
	// ResetAt returns the reset time of the live window for key
	ResetAt(key string) (time.Time, bool)
	// Clear removes key
	Clear(key string)
	// Sweep evicts every expired key and reports how many were removed
	Sweep() int
}

type counter struct {
	count   int
	resetAt time.Time
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	counters map[string]*counter
	mutex    sync.Mutex
	now      func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[string]*counter),
		now:      time.Now,
	}
}

// WithClock replaces the store's time source
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

// Hit implements Store
func (s *MemoryStore) Hit(key string, decay time.Duration) (int, time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &counter{resetAt: now.Add(decay)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.resetAt
}

// Attempts implements Store
func (s *MemoryStore) Attempts(key string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if c, ok := s.live(key); ok {
		return c.count
	}
	return 0
}

// ResetAt implements Store
func (s *MemoryStore) ResetAt(key string) (time.Time, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if c, ok := s.live(key); ok {
		return c.resetAt, true
	}
	return time.Time{}, false
}

// Clear implements Store
func (s *MemoryStore) Clear(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.counters, key)
}

// Sweep implements Store
func (s *MemoryStore) Sweep() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	removed := 0
	for key, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys, expired or not
func (s *MemoryStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.counters)
}

// live must be called with the mutex held
func (s *MemoryStore) live(key string) (*counter, bool) {
	c, ok := s.counters[key]
	if !ok || !s.now().Before(c.resetAt) {
		return nil, false
	}
	return c, true
}
