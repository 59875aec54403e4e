package session

import (
	"context"
	"net/http"
	"time"
)

// Session represents a user session
type Session interface {
	// Basic session operations
	ID() string
	Get(key string) interface{}
	Put(key string, value interface{})
	Remove(key string)
	Flush()
	Has(key string) bool
	All() map[string]interface{}

	// Flash messaging; flashed values survive exactly one subsequent request
	Flash(key string, value interface{})
	GetFlash(key string) interface{}

	// CSRF token
	Token() string
	RegenerateToken() string

	// Session lifecycle
	Regenerate(ctx context.Context) error
	Invalidate(ctx context.Context) error
	IsStarted() bool
}

// Handler defines the interface for session storage backends
type Handler interface {
	Read(ctx context.Context, sessionID string) ([]byte, error)
	Write(ctx context.Context, sessionID string, data []byte) error
	Destroy(ctx context.Context, sessionID string) error
	Exists(ctx context.Context, sessionID string) (bool, error)

	// GC removes sessions idle for longer than maxLifetime and reports how
	// many were removed.
	GC(ctx context.Context, maxLifetime time.Duration) (int, error)
	Count(ctx context.Context) (int, error)
}

// Config holds session configuration options
type Config struct {
	// Cookie configuration
	CookieName   string
	CookiePath   string
	CookieDomain string
	Secure       bool
	HTTPOnly     bool
	SameSite     http.SameSite

	// Lifetime is the idle time after which a session expires
	Lifetime time.Duration
}

// DefaultConfig returns a default session configuration
func DefaultConfig() Config {
	return Config{
		CookieName: "dispatch_session",
		CookiePath: "/",
		HTTPOnly:   true,
		SameSite:   http.SameSiteLaxMode,
		Lifetime:   2 * time.Hour,
	}
}

// Reserved session keys
const (
	tokenKey = "_token"
	flashKey = "_flash"
)
