package security

import (
	"fmt"
	"net/http"
	"strings"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// Authenticate resolves the current user from a bearer token or the
// session. Unauthenticated API clients get 401; browsers are redirected to
// the login page and the requested URL is remembered.
func (f *MiddlewareFactory) Authenticate() httpInternal.Middleware {
	users := f.deps.Users
	loginPath := f.deps.Config.LoginPath

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		if c.User() == nil && users != nil {
			user, err := f.resolveUser(c)
			if err != nil {
				return nil, err
			}
			if user != nil {
				c.SetUser(user)
			}
		}

		if c.User() != nil {
			return next(c)
		}

		if c.ExpectsJSON() {
			return httpInternal.JSON(http.StatusUnauthorized, map[string]interface{}{
				"error":   "Unauthenticated",
				"message": "Authentication is required to access this resource.",
			})
		}

		if sess := c.Session(); sess != nil && c.Method() == http.MethodGet {
			sess.Put(SessionIntendedKey, c.URL())
		}
		return httpInternal.Redirect(http.StatusFound, loginPath), nil
	})
}

func (f *MiddlewareFactory) resolveUser(c *httpInternal.Context) (Authenticatable, error) {
	ctx := c.Context()

	if token, ok := bearerToken(c.Header("Authorization")); ok {
		user, err := f.deps.Users.RetrieveByToken(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user by token: %w", err)
		}
		return user, nil
	}

	sess := c.Session()
	if sess == nil {
		return nil, nil
	}
	id, ok := sess.Get(SessionUserKey).(string)
	if !ok || id == "" {
		return nil, nil
	}
	user, err := f.deps.Users.RetrieveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %q: %w", id, err)
	}
	return user, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
