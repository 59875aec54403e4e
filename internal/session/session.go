package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// DefaultSession implements the Session interface
type DefaultSession struct {
	id      string
	data    map[string]interface{}
	flash   map[string]interface{} // flashed during this request
	old     map[string]interface{} // flashed during the previous request
	started bool
	dirty   bool
	handler Handler
	mutex   sync.RWMutex
}

// NewSession creates a new, empty session
func NewSession(id string, handler Handler) *DefaultSession {
	return &DefaultSession{
		id:      id,
		data:    make(map[string]interface{}),
		flash:   make(map[string]interface{}),
		old:     make(map[string]interface{}),
		handler: handler,
	}
}

// ID returns the session ID
func (s *DefaultSession) ID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.id
}

// Get retrieves a value from the session, falling back to flash data
func (s *DefaultSession) Get(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if value, ok := s.data[key]; ok {
		return value
	}
	if value, ok := s.flash[key]; ok {
		return value
	}
	return s.old[key]
}

// Put stores a value in the session
func (s *DefaultSession) Put(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data[key] = value
	s.dirty = true
}

// Remove deletes a key from the session
func (s *DefaultSession) Remove(key string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.data, key)
	s.dirty = true
}

// Flush clears all session data, including the CSRF token
func (s *DefaultSession) Flush() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.data = make(map[string]interface{})
	s.flash = make(map[string]interface{})
	s.old = make(map[string]interface{})
	s.dirty = true
}

// Has checks if a key exists in the session
func (s *DefaultSession) Has(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, exists := s.data[key]
	return exists
}

// All returns a copy of the session data without reserved keys
func (s *DefaultSession) All() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	result := make(map[string]interface{}, len(s.data))
	for k, v := range s.data {
		if !strings.HasPrefix(k, "_") {
			result[k] = v
		}
	}
	return result
}

// Flash stores a value for the next request
func (s *DefaultSession) Flash(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.flash[key] = value
	s.dirty = true
}

// GetFlash retrieves a flashed value
func (s *DefaultSession) GetFlash(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if value, ok := s.old[key]; ok {
		return value
	}
	return s.flash[key]
}

// Token returns the CSRF token, creating one if the session has none
func (s *DefaultSession) Token() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if token, ok := s.data[tokenKey].(string); ok && token != "" {
		return token
	}
	return s.regenerateToken()
}

// RegenerateToken replaces the CSRF token
func (s *DefaultSession) RegenerateToken() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.regenerateToken()
}

func (s *DefaultSession) regenerateToken() string {
	token := GenerateToken()
	s.data[tokenKey] = token
	s.dirty = true
	return token
}

// Regenerate moves the session to a new ID, destroying the old record
func (s *DefaultSession) Regenerate(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.handler != nil {
		if err := s.handler.Destroy(ctx, s.id); err != nil {
			return fmt.Errorf("destroy session %s: %w", s.id, err)
		}
	}

	s.id = GenerateSessionID()
	s.dirty = true
	return nil
}

// Invalidate flushes all data and regenerates the ID
func (s *DefaultSession) Invalidate(ctx context.Context) error {
	s.Flush()
	return s.Regenerate(ctx)
}

// IsStarted reports whether the session was started by a manager
func (s *DefaultSession) IsStarted() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.started
}

// IsDirty reports whether the session changed since it was loaded
func (s *DefaultSession) IsDirty() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.dirty
}

// Save persists the session through its handler. Flash data written during
// this request becomes the next request's old flash data.
func (s *DefaultSession) Save(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.handler == nil {
		return nil
	}
	if !s.dirty && len(s.old) == 0 {
		return nil
	}

	payload, err := s.encode()
	if err != nil {
		return err
	}
	if err := s.handler.Write(ctx, s.id, payload); err != nil {
		return fmt.Errorf("write session %s: %w", s.id, err)
	}

	s.dirty = false
	return nil
}

// encode serializes data plus this request's flash values
func (s *DefaultSession) encode() ([]byte, error) {
	record := make(map[string]interface{}, len(s.data)+1)
	for k, v := range s.data {
		record[k] = v
	}
	if len(s.flash) > 0 {
		record[flashKey] = s.flash
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode session %s: %w", s.id, err)
	}
	return payload, nil
}

// load restores a payload written by encode. Flash values from the previous
// request are aged so they are dropped by the next save.
func (s *DefaultSession) load(payload []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.started = true
	if len(payload) == 0 {
		return nil
	}

	record := make(map[string]interface{})
	if err := json.Unmarshal(payload, &record); err != nil {
		return fmt.Errorf("decode session %s: %w", s.id, err)
	}

	if flashed, ok := record[flashKey].(map[string]interface{}); ok {
		s.old = flashed
	}
	delete(record, flashKey)
	s.data = record
	return nil
}
