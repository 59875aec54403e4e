package dispatch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/onyx-go/dispatch/internal/app"
	httpErrors "github.com/onyx-go/dispatch/internal/errors"
	httpInternal "github.com/onyx-go/dispatch/internal/http"
	"github.com/onyx-go/dispatch/internal/http/pipeline"
	"github.com/onyx-go/dispatch/internal/http/router"
)

// maxGroupDepth bounds group expansion so a group listing itself fails
// instead of recursing forever
const maxGroupDepth = 8

// Kernel is the HTTP entry point. It runs the global middleware stack around
// the router and resolves named route middleware: aliases with parameters
// ("throttle:60,1"), groups ("web", "api"), and container bindings.
type Kernel struct {
	router    *router.Router
	errors    *httpErrors.ErrorHandler
	container *app.Container

	aliases map[string]pipeline.Factory
	groups  map[string][]string
	global  []string
	mutex   sync.RWMutex
}

// NewKernel creates a kernel dispatching to r. Errors escaping the pipeline
// are rendered by eh.
func NewKernel(r *router.Router, eh *httpErrors.ErrorHandler, container *app.Container) *Kernel {
	k := &Kernel{
		router:    r,
		errors:    eh,
		container: container,
		aliases:   make(map[string]pipeline.Factory),
		groups:    make(map[string][]string),
	}
	r.SetMiddlewareResolver(k)
	r.SetErrorHandler(eh)
	return k
}

// Alias registers a route middleware name
func (k *Kernel) Alias(name string, factory pipeline.Factory) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.aliases[name] = factory
}

// Aliases registers several route middleware names
func (k *Kernel) Aliases(factories map[string]pipeline.Factory) {
	for name, factory := range factories {
		k.Alias(name, factory)
	}
}

// Group defines a middleware group. Members may be aliases with parameters,
// bindings or other groups.
func (k *Kernel) Group(name string, members ...string) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.groups[name] = append([]string(nil), members...)
}

// Use appends names to the global stack that wraps every request
func (k *Kernel) Use(names ...string) {
	k.mutex.Lock()
	defer k.mutex.Unlock()
	k.global = append(k.global, names...)
}

// Global returns the global stack
func (k *Kernel) Global() []string {
	k.mutex.RLock()
	defer k.mutex.RUnlock()
	return append([]string(nil), k.global...)
}

// Names lists every alias and group name, sorted
func (k *Kernel) Names() []string {
	k.mutex.RLock()
	defer k.mutex.RUnlock()

	names := make([]string, 0, len(k.aliases)+len(k.groups))
	for name := range k.aliases {
		names = append(names, name)
	}
	for name := range k.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveMiddleware implements pipeline.Resolver
func (k *Kernel) ResolveMiddleware(name string) ([]httpInternal.Middleware, error) {
	return k.resolve(name, 0)
}

func (k *Kernel) resolve(name string, depth int) ([]httpInternal.Middleware, error) {
	if depth > maxGroupDepth {
		return nil, fmt.Errorf("middleware group %q nests too deeply", name)
	}

	base, params := pipeline.ParseName(name)

	k.mutex.RLock()
	members, isGroup := k.groups[name]
	factory, isAlias := k.aliases[base]
	k.mutex.RUnlock()

	switch {
	case isGroup:
		var stages []httpInternal.Middleware
		for _, member := range members {
			resolved, err := k.resolve(member, depth+1)
			if err != nil {
				return nil, fmt.Errorf("middleware group %q: %w", name, err)
			}
			stages = append(stages, resolved...)
		}
		return stages, nil

	case isAlias:
		m, err := factory(params...)
		if err != nil {
			return nil, err
		}
		return []httpInternal.Middleware{m}, nil

	case k.container != nil && k.container.Has(base):
		instance, err := k.container.Make(base)
		if err != nil {
			return nil, err
		}
		switch m := instance.(type) {
		case httpInternal.Middleware:
			return []httpInternal.Middleware{m}, nil
		case pipeline.Factory:
			built, err := m(params...)
			if err != nil {
				return nil, err
			}
			return []httpInternal.Middleware{built}, nil
		}
		return nil, fmt.Errorf("binding %q is a %T, not middleware", base, instance)
	}

	return nil, fmt.Errorf("middleware %q is not defined", name)
}

// Handle runs c through the global stack and the router. It always returns
// a response; errors are rendered by the error handler.
func (k *Kernel) Handle(c *httpInternal.Context) *httpInternal.Response {
	global := k.Global()
	items := make([]interface{}, len(global))
	for i, name := range global {
		items[i] = name
	}

	stages, err := pipeline.Normalize(items, k)
	if err != nil {
		return k.errors.Render(c, err)
	}

	res, err := pipeline.New(stages...).Then(c, k.router.Dispatch)
	if err != nil {
		return k.errors.Render(c, err)
	}
	if res == nil {
		return httpInternal.NoContent()
	}
	return res
}
