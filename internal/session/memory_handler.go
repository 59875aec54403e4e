package session

import (
	"context"
	"sync"
	"time"
)

// MemoryHandler implements the Handler interface using in-memory storage
type MemoryHandler struct {
	sessions map[string]*sessionData
	mutex    sync.RWMutex
	now      func() time.Time
}

// sessionData holds session information in memory
type sessionData struct {
	data       []byte
	lastAccess time.Time
}

// NewMemoryHandler creates a new memory-based session handler
func NewMemoryHandler() *MemoryHandler {
	return &MemoryHandler{
		sessions: make(map[string]*sessionData),
		now:      time.Now,
	}
}

// WithClock replaces the handler's time source
func (mh *MemoryHandler) WithClock(now func() time.Time) *MemoryHandler {
	mh.now = now
	return mh
}

// Read retrieves session data by ID. Unknown IDs yield empty data.
func (mh *MemoryHandler) Read(ctx context.Context, sessionID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mh.mutex.Lock()
	defer mh.mutex.Unlock()

	entry, exists := mh.sessions[sessionID]
	if !exists {
		return nil, nil
	}
	entry.lastAccess = mh.now()

	result := make([]byte, len(entry.data))
	copy(result, entry.data)
	return result, nil
}

// Write stores session data by ID
func (mh *MemoryHandler) Write(ctx context.Context, sessionID string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := make([]byte, len(data))
	copy(stored, data)

	mh.mutex.Lock()
	defer mh.mutex.Unlock()
	mh.sessions[sessionID] = &sessionData{data: stored, lastAccess: mh.now()}
	return nil
}

// Destroy removes session data by ID
func (mh *MemoryHandler) Destroy(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mh.mutex.Lock()
	defer mh.mutex.Unlock()
	delete(mh.sessions, sessionID)
	return nil
}

// Exists checks if a session exists
func (mh *MemoryHandler) Exists(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	mh.mutex.RLock()
	defer mh.mutex.RUnlock()
	_, exists := mh.sessions[sessionID]
	return exists, nil
}

// GC performs garbage collection of expired sessions
func (mh *MemoryHandler) GC(ctx context.Context, maxLifetime time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	mh.mutex.Lock()
	defer mh.mutex.Unlock()

	cutoff := mh.now().Add(-maxLifetime)
	removed := 0
	for sessionID, entry := range mh.sessions {
		if entry.lastAccess.Before(cutoff) {
			delete(mh.sessions, sessionID)
			removed++
		}
	}
	return removed, nil
}

// Count returns the number of stored sessions
func (mh *MemoryHandler) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	mh.mutex.RLock()
	defer mh.mutex.RUnlock()
	return len(mh.sessions), nil
}
