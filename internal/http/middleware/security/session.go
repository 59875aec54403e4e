package security

import (
	"fmt"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// StartSession loads the session named by the request cookie, attaches it
// to the context and persists it once the response is built
func (f *MiddlewareFactory) StartSession() httpInternal.Middleware {
	manager := f.deps.Sessions

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		if manager == nil {
			return nil, fmt.Errorf("session middleware has no session manager")
		}

		sess, err := manager.Start(c.Context(), c.Request())
		if err != nil {
			return nil, err
		}
		c.SetSession(sess)

		res, err := next(c)
		if err != nil || res == nil {
			// keep flash data and CSRF tokens consistent even when the
			// handler failed
			if _, saveErr := manager.Save(c.Context(), sess); saveErr != nil && err == nil {
				return nil, saveErr
			}
			return res, err
		}

		cookie, err := manager.Save(c.Context(), sess)
		if err != nil {
			return nil, err
		}
		res.SetCookie(cookie)
		return res, nil
	})
}
