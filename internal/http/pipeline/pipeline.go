// Package pipeline runs a request through an ordered list of middleware.
package pipeline

import (
	"fmt"
	"strings"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// Pipeline is an immutable, ordered middleware stack. The first stage sees
// the request first and the response last.
type Pipeline struct {
	stages []httpInternal.Middleware
}

// New creates a pipeline from stages in execution order
func New(stages ...httpInternal.Middleware) *Pipeline {
	return &Pipeline{stages: append([]httpInternal.Middleware(nil), stages...)}
}

// Through returns a new pipeline with stages appended
func (p *Pipeline) Through(stages ...httpInternal.Middleware) *Pipeline {
	combined := make([]httpInternal.Middleware, 0, len(p.stages)+len(stages))
	combined = append(combined, p.stages...)
	combined = append(combined, stages...)
	return &Pipeline{stages: combined}
}

// Len returns the number of stages
func (p *Pipeline) Len() int {
	return len(p.stages)
}

// Then sends c through every stage and finally to destination
func (p *Pipeline) Then(c *httpInternal.Context, destination httpInternal.Next) (*httpInternal.Response, error) {
	next := destination
	for i := len(p.stages) - 1; i >= 0; i-- {
		stage, inner := p.stages[i], next
		next = func(c *httpInternal.Context) (*httpInternal.Response, error) {
			return stage.Handle(c, inner)
		}
	}
	return next(c)
}

// Resolver turns a middleware name such as "auth" or "throttle:60,1" into
// middleware instances. A group name resolves to several.
type Resolver interface {
	ResolveMiddleware(name string) ([]httpInternal.Middleware, error)
}

// Factory builds a middleware from alias parameters, e.g. "60", "1" for
// "throttle:60,1"
type Factory func(params ...string) (httpInternal.Middleware, error)

// Normalize converts route middleware declarations into middleware
// instances, resolving names through resolver.
func Normalize(items []interface{}, resolver Resolver) ([]httpInternal.Middleware, error) {
	stages := make([]httpInternal.Middleware, 0, len(items))
	for _, item := range items {
		switch m := item.(type) {
		case httpInternal.Middleware:
			stages = append(stages, m)
		case func(*httpInternal.Context, httpInternal.Next) (*httpInternal.Response, error):
			stages = append(stages, httpInternal.MiddlewareFunc(m))
		case string:
			if resolver == nil {
				return nil, fmt.Errorf("cannot resolve middleware %q: no resolver", m)
			}
			resolved, err := resolver.ResolveMiddleware(m)
			if err != nil {
				return nil, err
			}
			stages = append(stages, resolved...)
		default:
			return nil, fmt.Errorf("unsupported middleware type %T", item)
		}
	}
	return stages, nil
}

// ParseName splits "throttle:60,1" into "throttle" and ["60", "1"]
func ParseName(raw string) (string, []string) {
	name, rawParams, found := strings.Cut(raw, ":")
	if !found || rawParams == "" {
		return name, nil
	}

	params := strings.Split(rawParams, ",")
	for i := range params {
		params[i] = strings.TrimSpace(params[i])
	}
	return name, params
}
