package security

import (
	"fmt"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
	"github.com/onyx-go/dispatch/internal/http/pipeline"
)

// Aliases returns the route middleware names this package provides, for
// registration with the kernel. Only "throttle" takes parameters.
func (f *MiddlewareFactory) Aliases() map[string]pipeline.Factory {
	return map[string]pipeline.Factory{
		"auth":        noParams("auth", f.Authenticate),
		"csrf":        noParams("csrf", f.VerifyCSRF),
		"cors":        noParams("cors", f.CORS),
		"session":     noParams("session", f.StartSession),
		"headers":     noParams("headers", f.SecurityHeaders),
		"maintenance": noParams("maintenance", f.MaintenanceMode),
		"trim":        noParams("trim", f.TrimStrings),
		"log":         noParams("log", f.SecurityLogger),
		"throttle":    f.ThrottleFactory,
	}
}

// WebGroup lists the middleware names of the "web" group in order
func WebGroup() []string {
	return []string{"session", "csrf", "trim"}
}

// APIGroup lists the middleware names of the "api" group in order
func APIGroup() []string {
	return []string{"cors", "throttle:60,1"}
}

// GlobalStack lists the middleware every request passes through
func GlobalStack() []string {
	return []string{"log", "headers", "maintenance"}
}

func noParams(name string, build func() httpInternal.Middleware) pipeline.Factory {
	return func(params ...string) (httpInternal.Middleware, error) {
		if len(params) > 0 {
			return nil, fmt.Errorf("middleware %q takes no parameters", name)
		}
		return build(), nil
	}
}
