package security

import (
	"net/http"
	"strconv"
	"strings"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// CORS answers preflight requests and adds the Access-Control headers to
// responses for allowed origins
func (f *MiddlewareFactory) CORS() httpInternal.Middleware {
	cfg := f.deps.Config.CORS
	methods := strings.Join(cfg.Methods, ", ")
	headers := strings.Join(cfg.Headers, ", ")

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		origin := c.Header("Origin")
		allowed := origin != "" && originAllowed(origin, cfg.Origins)

		if c.Method() == http.MethodOptions && c.Header("Access-Control-Request-Method") != "" {
			res := httpInternal.NoContent()
			if allowed {
				applyCORS(res, origin, cfg)
				res.Header.Set("Access-Control-Allow-Methods", methods)
				res.Header.Set("Access-Control-Allow-Headers", headers)
				if cfg.MaxAge > 0 {
					res.Header.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
			}
			return res, nil
		}

		res, err := next(c)
		if err != nil || res == nil || !allowed {
			return res, err
		}
		applyCORS(res, origin, cfg)
		return res, nil
	})
}

func applyCORS(res *httpInternal.Response, origin string, cfg CORSConfig) {
	if contains(cfg.Origins, "*") && !cfg.Credentials {
		res.Header.Set("Access-Control-Allow-Origin", "*")
	} else {
		res.Header.Set("Access-Control-Allow-Origin", origin)
		res.Header.Add("Vary", "Origin")
	}
	if cfg.Credentials {
		res.Header.Set("Access-Control-Allow-Credentials", "true")
	}
}

func originAllowed(origin string, allowed []string) bool {
	for _, candidate := range allowed {
		if candidate == "*" || strings.EqualFold(candidate, origin) {
			return true
		}
		if suffix, ok := strings.CutPrefix(candidate, "*."); ok && strings.HasSuffix(origin, "."+suffix) {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
