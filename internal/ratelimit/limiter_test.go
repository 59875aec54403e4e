package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(c *clock) (*Limiter, *MemoryStore) {
	store := NewMemoryStore().WithClock(c.Now)
	return NewLimiter(store).WithClock(c.Now), store
}

func TestLimiterAllowsUpToMax(t *testing.T) {
	c := newClock()
	limiter, _ := newLimiter(c)

	for i := 1; i <= 3; i++ {
		result := limiter.Attempt("ip:1", 3, time.Minute)
		require.True(t, result.Allowed, "attempt %d", i)
		assert.Equal(t, 3-i, result.Remaining)
		assert.Equal(t, 3, result.Limit)
	}

	result := limiter.Attempt("ip:1", 3, time.Minute)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, time.Minute, result.RetryAfter)
	assert.Equal(t, 60, result.RetryAfterSeconds())
	assert.True(t, limiter.TooManyAttempts("ip:1", 3))
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	c := newClock()
	limiter, _ := newLimiter(c)

	limiter.Attempt("k", 1, time.Minute)
	c.Advance(30 * time.Second)
	blocked := limiter.Attempt("k", 1, time.Minute)
	require.False(t, blocked.Allowed)
	assert.Equal(t, 30*time.Second, blocked.RetryAfter)
	assert.Equal(t, 30*time.Second, limiter.AvailableIn("k"))

	c.Advance(30 * time.Second)
	assert.Equal(t, 0, limiter.Store().Attempts("k"))
	assert.Equal(t, 1, limiter.RemainingAttempts("k", 1))

	allowed := limiter.Attempt("k", 1, time.Minute)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, c.Now().Add(time.Minute), allowed.ResetAt)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter, _ := newLimiter(newClock())

	limiter.Attempt("a", 1, time.Minute)
	assert.False(t, limiter.Attempt("a", 1, time.Minute).Allowed)
	assert.True(t, limiter.Attempt("b", 1, time.Minute).Allowed)

	limiter.Clear("a")
	assert.True(t, limiter.Attempt("a", 1, time.Minute).Allowed)
}

func TestStoreSweep(t *testing.T) {
	c := newClock()
	_, store := newLimiter(c)

	store.Hit("short", time.Second)
	store.Hit("long", time.Hour)
	assert.Equal(t, 2, store.Len())

	c.Advance(time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, ok := store.ResetAt("short")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Attempts("long"))
}

func TestStoreConcurrentHits(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Hit("shared", time.Minute)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, store.Attempts("shared"))
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 1, Result{}.RetryAfterSeconds())
	assert.Equal(t, 2, Result{RetryAfter: 1500 * time.Millisecond}.RetryAfterSeconds())
}
