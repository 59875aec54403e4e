package security

import (
	"fmt"
	"net/http"
	"strings"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// Fields that are never trimmed
var untrimmed = map[string]bool{
	"password":              true,
	"password_confirmation": true,
	"current_password":      true,
}

// TrimStrings normalizes submitted form and query values: surrounding
// whitespace is removed and, when configured, empty values are dropped so
// handlers see them as absent. Values over MaxInputLength are rejected
// with 422.
func (f *MiddlewareFactory) TrimStrings() httpInternal.Middleware {
	cfg := f.deps.Config

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		req := c.Request()
		if err := req.ParseForm(); err != nil {
			return reject(c, http.StatusBadRequest, "Bad Request", "The request body could not be parsed.")
		}

		for _, values := range []map[string][]string{req.PostForm, req.Form} {
			if field, ok := sanitizeValues(values, cfg); !ok {
				return reject(c, http.StatusUnprocessableEntity, "Input Too Long",
					fmt.Sprintf("The %s field may not be greater than %d characters.", field, cfg.MaxInputLength))
			}
		}
		return next(c)
	})
}

// sanitizeValues rewrites values in place and reports the first field that
// exceeds the length limit
func sanitizeValues(values map[string][]string, cfg Config) (string, bool) {
	for key, list := range values {
		kept := list[:0]
		for _, v := range list {
			if cfg.TrimStrings && !untrimmed[key] {
				v = strings.TrimSpace(v)
			}
			if cfg.MaxInputLength > 0 && len(v) > cfg.MaxInputLength {
				return key, false
			}
			if cfg.ConvertEmptyToNull && v == "" {
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) == 0 {
			delete(values, key)
			continue
		}
		values[key] = kept
	}
	return "", true
}
