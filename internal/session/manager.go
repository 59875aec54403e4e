package session

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Manager handles session lifecycle and the session cookie
type Manager struct {
	handler Handler
	config  Config
}

// NewManager creates a new session manager
func NewManager(handler Handler, config Config) *Manager {
	if config.CookieName == "" {
		config.CookieName = DefaultConfig().CookieName
	}
	if config.CookiePath == "" {
		config.CookiePath = "/"
	}
	if config.Lifetime <= 0 {
		config.Lifetime = DefaultConfig().Lifetime
	}
	return &Manager{handler: handler, config: config}
}

// Config returns the manager configuration
func (m *Manager) Config() Config {
	return m.config
}

// Handler returns the storage backend
func (m *Manager) Handler() Handler {
	return m.handler
}

// Start loads the session named by the request cookie, or begins a new one
// when the cookie is missing, malformed or refers to an unknown session.
func (m *Manager) Start(ctx context.Context, r *http.Request) (*DefaultSession, error) {
	id := ""
	if cookie, err := r.Cookie(m.config.CookieName); err == nil && ValidateSessionID(cookie.Value) {
		id = cookie.Value
	}

	if id != "" {
		payload, err := m.handler.Read(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("read session: %w", err)
		}
		if len(payload) > 0 {
			s := NewSession(id, m.handler)
			if err := s.load(payload); err == nil {
				return s, nil
			}
		}
	}

	s := NewSession(GenerateSessionID(), m.handler)
	s.started = true
	s.dirty = true
	return s, nil
}

// Save persists the session and sets the session cookie on the response
func (m *Manager) Save(ctx context.Context, s *DefaultSession) (*http.Cookie, error) {
	if err := s.Save(ctx); err != nil {
		return nil, err
	}
	return m.Cookie(s.ID()), nil
}

// Destroy removes the session and returns an expired cookie
func (m *Manager) Destroy(ctx context.Context, s Session) (*http.Cookie, error) {
	if err := m.handler.Destroy(ctx, s.ID()); err != nil {
		return nil, err
	}
	cookie := m.Cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	return cookie, nil
}

// Cookie builds the session cookie for id
func (m *Manager) Cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    id,
		Path:     m.config.CookiePath,
		Domain:   m.config.CookieDomain,
		MaxAge:   int(m.config.Lifetime.Seconds()),
		Secure:   m.config.Secure,
		HttpOnly: m.config.HTTPOnly,
		SameSite: m.config.SameSite,
	}
}

// GarbageCollect removes expired sessions from the handler
func (m *Manager) GarbageCollect(ctx context.Context) (int, error) {
	return m.handler.GC(ctx, m.config.Lifetime)
}
