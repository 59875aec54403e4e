package ratelimit

import (
	"math"
	"time"
)

// Result contains information about a rate limit check
type Result struct {
	Allowed    bool          `json:"allowed"`
	Limit      int           `json:"limit"`
	Remaining  int           `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
	ResetAt    time.Time     `json:"reset_at"`
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least one
func (r Result) RetryAfterSeconds() int {
	seconds := int(math.Ceil(r.RetryAfter.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

// Limiter applies fixed-window limits on top of a Store
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter creates a limiter over store
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock replaces the limiter's time source. It should match the store's.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Store returns the underlying counter store
func (l *Limiter) Store() Store {
	return l.store
}

// Attempt records a hit for key and reports whether it fits within max
// attempts per decay window.
func (l *Limiter) Attempt(key string, max int, decay time.Duration) Result {
	count, resetAt := l.store.Hit(key, decay)

	result := Result{
		Allowed:   count <= max,
		Limit:     max,
		Remaining: max - count,
		ResetAt:   resetAt,
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfter = resetAt.Sub(l.now())
		if result.RetryAfter < 0 {
			result.RetryAfter = 0
		}
	}
	return result
}

// TooManyAttempts reports whether key has used up max attempts
func (l *Limiter) TooManyAttempts(key string, max int) bool {
	return l.store.Attempts(key) >= max
}

// RemainingAttempts returns how many attempts key has left
func (l *Limiter) RemainingAttempts(key string, max int) int {
	remaining := max - l.store.Attempts(key)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AvailableIn returns the time until key's window resets
func (l *Limiter) AvailableIn(key string) time.Duration {
	resetAt, ok := l.store.ResetAt(key)
	if !ok {
		return 0
	}
	if wait := resetAt.Sub(l.now()); wait > 0 {
		return wait
	}
	return 0
}

// Clear resets the counter for key
func (l *Limiter) Clear(key string) {
	l.store.Clear(key)
}
