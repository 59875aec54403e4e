package security

import (
	"fmt"
	"strings"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// SecurityHeaders adds the standard security headers to every outgoing
// response. Headers the handler already set are left alone. Errors from
// further in are rendered here so 404, 405 and 500 pages carry them too.
func (f *MiddlewareFactory) SecurityHeaders() httpInternal.Middleware {
	cfg := f.deps.Config
	csp := buildCSP(cfg.CSP)
	hsts := buildHSTS(cfg.HSTS)
	errs := f.deps.Errors

	return httpInternal.MiddlewareFunc(func(c *httpInternal.Context, next httpInternal.Next) (*httpInternal.Response, error) {
		res, err := next(c)
		if err != nil {
			if errs == nil {
				return nil, err
			}
			res = errs.Render(c, err)
		}
		if res == nil {
			res = httpInternal.NoContent()
		}

		setDefault(res, "X-Content-Type-Options", "nosniff")
		setDefault(res, "X-Frame-Options", cfg.FrameOptions)
		setDefault(res, "X-XSS-Protection", "1; mode=block")
		setDefault(res, "Referrer-Policy", cfg.ReferrerPolicy)
		setDefault(res, "Permissions-Policy", cfg.PermissionsPolicy)

		if c.IsSecure() {
			setDefault(res, "Content-Security-Policy", csp)
			setDefault(res, "Strict-Transport-Security", hsts)
		}
		return res, nil
	})
}

func setDefault(res *httpInternal.Response, key, value string) {
	if value == "" || res.Header.Get(key) != "" {
		return
	}
	res.Header.Set(key, value)
}

// buildCSP builds the Content-Security-Policy header value
func buildCSP(cfg CSPConfig) string {
	var directives []string
	add := func(name string, sources []string) {
		if len(sources) > 0 {
			directives = append(directives, name+" "+strings.Join(sources, " "))
		}
	}

	add("default-src", cfg.DefaultSrc)
	add("script-src", cfg.ScriptSrc)
	add("style-src", cfg.StyleSrc)
	add("img-src", cfg.ImgSrc)
	add("connect-src", cfg.ConnectSrc)
	add("font-src", cfg.FontSrc)
	add("object-src", cfg.ObjectSrc)
	add("frame-src", cfg.FrameSrc)
	if cfg.ReportURI != "" {
		directives = append(directives, "report-uri "+cfg.ReportURI)
	}

	return strings.Join(directives, "; ")
}

func buildHSTS(cfg HSTSConfig) string {
	if cfg.MaxAge <= 0 {
		return ""
	}
	value := fmt.Sprintf("max-age=%d", cfg.MaxAge)
	if cfg.IncludeSubDomains {
		value += "; includeSubDomains"
	}
	if cfg.Preload {
		value += "; preload"
	}
	return value
}
