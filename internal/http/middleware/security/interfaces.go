// Package security provides the HTTP middleware that guards requests:
// security headers, CSRF verification, throttling, CORS, authentication,
// session start and maintenance mode.
package security

import (
	"context"
	"net/http"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
	"github.com/onyx-go/dispatch/internal/logging"
	"github.com/onyx-go/dispatch/internal/ratelimit"
	"github.com/onyx-go/dispatch/internal/session"
)

// Config defines the configuration for security middleware
type Config struct {
	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string

	// HSTS and CSP are only sent on secure requests
	HSTS HSTSConfig
	CSP  CSPConfig

	CORS CORSConfig

	// CSRFExcept lists paths that skip CSRF verification; a trailing "*"
	// matches any suffix
	CSRFExcept []string

	// LoginPath is where unauthenticated browser requests are redirected
	LoginPath string

	// Input handling for form requests
	TrimStrings        bool
	ConvertEmptyToNull bool
	MaxInputLength     int
}

// HSTSConfig defines HSTS configuration
type HSTSConfig struct {
	MaxAge            int
	IncludeSubDomains bool
	Preload           bool
}

// CSPConfig defines Content Security Policy configuration
type CSPConfig struct {
	DefaultSrc []string
	ScriptSrc  []string
	StyleSrc   []string
	ImgSrc     []string
	ConnectSrc []string
	FontSrc    []string
	ObjectSrc  []string
	FrameSrc   []string
	ReportURI  string
}

// CORSConfig defines cross-origin resource sharing
type CORSConfig struct {
	Origins     []string
	Methods     []string
	Headers     []string
	Credentials bool
	MaxAge      int
}

// DefaultConfig returns the framework's default security settings
func DefaultConfig() Config {
	return Config{
		FrameOptions:      "DENY",
		ReferrerPolicy:    "strict-origin-when-cross-origin",
		PermissionsPolicy: "camera=(), microphone=(), geolocation=()",
		HSTS: HSTSConfig{
			MaxAge:            31536000,
			IncludeSubDomains: true,
		},
		CSP: CSPConfig{
			DefaultSrc: []string{"'self'"},
			ScriptSrc:  []string{"'self'"},
			StyleSrc:   []string{"'self'", "'unsafe-inline'"},
			ImgSrc:     []string{"'self'", "data:"},
			FontSrc:    []string{"'self'"},
			ObjectSrc:  []string{"'none'"},
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
			Methods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			Headers: []string{"Content-Type", "Authorization", "X-Requested-With", "X-CSRF-TOKEN"},
			MaxAge:  86400,
		},
		LoginPath:          "/login",
		TrimStrings:        true,
		ConvertEmptyToNull: true,
	}
}

// Authenticatable is implemented by user values that can be identified
type Authenticatable interface {
	AuthIdentifier() string
}

// UserProvider looks up users for the Authenticate middleware
type UserProvider interface {
	RetrieveByID(ctx context.Context, id string) (Authenticatable, error)
	RetrieveByToken(ctx context.Context, token string) (Authenticatable, error)
}

// Dependencies holds all external dependencies for security middleware
type Dependencies struct {
	Config      Config
	Logger      logging.Logger
	Limiter     *ratelimit.Limiter
	Sessions    *session.Manager
	Users       UserProvider
	Maintenance MaintenanceStore
	Errors      ErrorRenderer
}

// ErrorRenderer turns an error into a response
type ErrorRenderer interface {
	Render(c *httpInternal.Context, err error) *httpInternal.Response
}

// MiddlewareFactory creates security middleware with injected dependencies
type MiddlewareFactory struct {
	deps *Dependencies
}

// NewMiddlewareFactory creates a new middleware factory with dependencies.
// A missing logger discards output and a missing limiter uses memory.
func NewMiddlewareFactory(deps *Dependencies) *MiddlewareFactory {
	if deps.Logger == nil {
		deps.Logger = logging.NewNullLogger()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(ratelimit.NewMemoryStore())
	}
	return &MiddlewareFactory{deps: deps}
}

// Session keys used by the middleware
const (
	SessionUserKey     = "auth.user_id"
	SessionIntendedKey = "url.intended"
)
