package router

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	httpErrors "github.com/onyx-go/dispatch/internal/errors"
	httpInternal "github.com/onyx-go/dispatch/internal/http"
	"github.com/onyx-go/dispatch/internal/http/pipeline"
)

// Container resolves controllers and injects handler arguments
type Container interface {
	Make(name string) (interface{}, error)
	Call(fn interface{}, params map[string]interface{}) (interface{}, error)
}

// MatchStatus is the outcome of matching a request against the route table
type MatchStatus int

const (
	// NotFound means no route pattern matched the path
	NotFound MatchStatus = iota
	// MethodNotAllowed means the path matched but not for this method
	MethodNotAllowed
	// Found means a route matched both path and method
	Found
)

// MatchResult is returned by Match
type MatchResult struct {
	Status  MatchStatus
	Route   *Route
	Params  map[string]string
	Allowed []string
}

// Router implements the HTTP router with pattern matching and middleware support.
// Routes are registered during bootstrap; Build freezes the table.
type Router struct {
	*RouteGroup

	routes       []*Route
	names        map[string]*Route
	container    Container
	resolver     pipeline.Resolver
	errorHandler *httpErrors.ErrorHandler
	mutex        sync.Mutex
	frozen       atomic.Bool
	buildOnce    sync.Once
	buildErr     error
}

// NewRouter creates a new HTTP router. The container may be nil when no
// controller actions or injected handlers are registered.
func NewRouter(container Container) *Router {
	r := &Router{
		routes:       make([]*Route, 0),
		names:        make(map[string]*Route),
		container:    container,
		errorHandler: httpErrors.NewErrorHandler(false),
	}
	r.RouteGroup = &RouteGroup{router: r}
	return r
}

// SetMiddlewareResolver sets how named route middleware is resolved
func (r *Router) SetMiddlewareResolver(resolver pipeline.Resolver) {
	r.resolver = resolver
}

// SetErrorHandler sets the handler used by ServeHTTP
func (r *Router) SetErrorHandler(handler *httpErrors.ErrorHandler) {
	r.errorHandler = handler
}

// AddRoute registers a route for the given methods
func (r *Router) AddRoute(methods []string, uri string, handler interface{}) *Route {
	return r.RouteGroup.AddRoute(methods, uri, handler)
}

func (r *Router) register(route *Route) {
	if r.frozen.Load() {
		panic(fmt.Sprintf("router: cannot add route %s after Build", route.uri))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.routes = append(r.routes, route)
}

// Build compiles every route and freezes the route table. It reports invalid
// patterns, unusable handlers and duplicate route names. Build runs once;
// later calls return the first result.
func (r *Router) Build() error {
	r.buildOnce.Do(func() {
		r.mutex.Lock()
		defer r.mutex.Unlock()

		var errs []error
		for _, route := range r.routes {
			if err := route.compile(); err != nil {
				errs = append(errs, err)
			}

			if route.name != "" {
				if existing, ok := r.names[route.name]; ok {
					errs = append(errs, fmt.Errorf("route name %q is used by both %s and %s", route.name, existing.uri, route.uri))
				} else {
					r.names[route.name] = route
				}
			}

			invoke, err := r.makeHandler(route.handler)
			if err != nil {
				errs = append(errs, fmt.Errorf("route %s: %w", route.uri, err))
			}
			route.invoke = invoke
		}

		r.buildErr = errors.Join(errs...)
		r.frozen.Store(true)
	})
	return r.buildErr
}

// Match finds the route for method and path. Routes are tried in
// registration order and the first full match wins. The table is built on
// first use; routes that failed to compile never match.
func (r *Router) Match(method, path string) MatchResult {
	_ = r.Build()
	method = strings.ToUpper(method)
	allowed := make(map[string]bool)

	for _, route := range r.routes {
		if route.regex == nil {
			continue
		}
		params, ok := route.match(path)
		if !ok {
			continue
		}
		if route.allows(method) {
			return MatchResult{Status: Found, Route: route, Params: params}
		}
		for _, m := range route.methods {
			allowed[m] = true
			if m == "GET" {
				allowed["HEAD"] = true
			}
		}
	}

	if len(allowed) == 0 {
		return MatchResult{Status: NotFound}
	}

	methods := make([]string, 0, len(allowed))
	for m := range allowed {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return MatchResult{Status: MethodNotAllowed, Allowed: methods}
}

// Dispatch routes the request to its handler through the route middleware.
// Unmatched requests fail with a 404 HTTPError and method mismatches with a
// 405 HTTPError carrying the Allow header.
func (r *Router) Dispatch(c *httpInternal.Context) (*httpInternal.Response, error) {
	if err := r.Build(); err != nil {
		return nil, err
	}

	result := r.Match(c.Method(), c.Path())
	switch result.Status {
	case NotFound:
		return nil, httpErrors.NotFound("")
	case MethodNotAllowed:
		return nil, httpErrors.MethodNotAllowed(result.Allowed...)
	}

	route := result.Route
	for key, value := range result.Params {
		c.SetParam(key, value)
	}
	c.SetRoute(route.Info())

	stages, err := pipeline.Normalize(route.middleware, r.resolver)
	if err != nil {
		return nil, err
	}

	return pipeline.New(stages...).Then(c, func(c *httpInternal.Context) (*httpInternal.Response, error) {
		result, err := route.invoke(c)
		if err != nil {
			return nil, err
		}
		return httpInternal.ToResponse(result)
	})
}

// ServeHTTP implements the http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	c := httpInternal.NewContext(req)

	res, err := r.Dispatch(c)
	if err != nil {
		res = r.errorHandler.Render(c, err)
	}
	if res == nil {
		res = httpInternal.NoContent()
	}
	_ = res.WriteTo(w, req)
}

// Named returns the route registered under name, or nil
func (r *Router) Named(name string) *Route {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if route, ok := r.names[name]; ok {
		return route
	}
	for _, route := range r.routes {
		if route.name == name {
			return route
		}
	}
	return nil
}

// Routes returns all registered routes (for debugging/introspection)
func (r *Router) Routes() []Listing {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	routes := make([]Listing, len(r.routes))
	for i, route := range r.routes {
		routes[i] = route.listing()
	}
	return routes
}
