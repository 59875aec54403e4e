package security

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// Throttle limits each client to maxAttempts requests per decay window on
// a route. Clients are keyed by user identifier, or by IP when anonymous.
func (f *MiddlewareFactory) Throttle(maxAttempts int, decay time.Duration) httpInternal.Middleware {
	limiter := f.deps.Limiter
	logger := f.deps.Logger.WithChannel("security")

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		key := throttleKey(c)
		result := limiter.Attempt(key, maxAttempts, decay)

		if !result.Allowed {
			logger.Info("rate limit exceeded", map[string]interface{}{
				"key":   key,
				"limit": maxAttempts,
			})

			res, err := reject(c, http.StatusTooManyRequests, "Too Many Attempts", "Too many requests. Please slow down.")
			if err != nil {
				return nil, err
			}
			res.Header.Set("Retry-After", strconv.Itoa(result.RetryAfterSeconds()))
			res.Header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			res.Header.Set("X-RateLimit-Remaining", "0")
			res.Header.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			return res, nil
		}

		res, err := next(c)
		if err != nil || res == nil {
			return res, err
		}
		res.Header.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		res.Header.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		return res, nil
	})
}

// ThrottleFactory builds Throttle from alias parameters: "max,minutes".
// Defaults are 60 requests per minute.
func (f *MiddlewareFactory) ThrottleFactory(params ...string) (httpInternal.Middleware, error) {
	maxAttempts, minutes := 60, 1

	if len(params) > 0 && params[0] != "" {
		n, err := strconv.Atoi(params[0])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid throttle limit %q", params[0])
		}
		maxAttempts = n
	}
	if len(params) > 1 && params[1] != "" {
		n, err := strconv.Atoi(params[1])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid throttle decay %q", params[1])
		}
		minutes = n
	}

	return f.Throttle(maxAttempts, time.Duration(minutes)*time.Minute), nil
}

func throttleKey(c *httpInternal.Context) string {
	identity := "ip:" + c.RemoteIP()
	if user, ok := c.User().(Authenticatable); ok && user.AuthIdentifier() != "" {
		identity = "user:" + user.AuthIdentifier()
	}

	signature := c.Path()
	if route := c.Route(); route != nil {
		signature = strings.Join(route.Methods, "|") + " " + route.URI
	}
	return identity + "|" + signature
}
