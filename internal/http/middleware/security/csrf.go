package security

import (
	"fmt"
	"net/http"
	"strings"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
	"github.com/onyx-go/dispatch/internal/session"
)

// StatusPageExpired is sent when the CSRF token does not match
const StatusPageExpired = 419

// XSRFCookie carries the session token for JavaScript clients
const XSRFCookie = "XSRF-TOKEN"

// VerifyCSRF rejects state-changing requests whose token does not match the
// session token. It must run after StartSession.
func (f *MiddlewareFactory) VerifyCSRF() httpInternal.Middleware {
	except := f.deps.Config.CSRFExcept
	logger := f.deps.Logger.WithChannel("security")

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		sess := c.Session()
		if sess == nil {
			return nil, fmt.Errorf("csrf verification requires a session; add the session middleware first")
		}

		if !isSafeMethod(c.Method()) && !pathExcepted(c.Path(), except) {
			if !session.SecureCompare(requestToken(c), sess.Token()) {
				logger.Warn("CSRF token mismatch", map[string]interface{}{
					"ip":     c.RemoteIP(),
					"method": c.Method(),
					"path":   c.Path(),
				})
				return reject(c, StatusPageExpired, "CSRF token mismatch", "The page has expired. Please refresh and try again.")
			}
		}

		res, err := next(c)
		if err != nil || res == nil {
			return res, err
		}

		res.SetCookie(&http.Cookie{
			Name:     XSRFCookie,
			Value:    sess.Token(),
			Path:     "/",
			Secure:   c.IsSecure(),
			SameSite: http.SameSiteLaxMode,
		})
		return res, nil
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// requestToken reads the submitted token from the form or headers
func requestToken(c *httpInternal.Context) string {
	if token := c.PostForm("_token"); token != "" {
		return token
	}
	if token := c.Header("X-CSRF-TOKEN"); token != "" {
		return token
	}
	return c.Header("X-XSRF-TOKEN")
}

func pathExcepted(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if prefix, wildcard := strings.CutSuffix(pattern, "*"); wildcard {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == strings.TrimSuffix(pattern, "/") || path == pattern {
			return true
		}
	}
	return false
}
