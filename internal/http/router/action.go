package router

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	httpErrors "github.com/onyx-go/dispatch/internal/errors"
	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// ErrMissingAction is wrapped by the error returned when a controller has no
// method for the routed action.
var ErrMissingAction = errors.New("controller action not found")

// Action routes to a method on a controller resolved from the container
type Action struct {
	Controller string
	Method     string
}

// String returns the "Controller@Method" form
func (a Action) String() string {
	return a.Controller + "@" + a.Method
}

// ParseAction parses "Controller@Method"
func ParseAction(raw string) (Action, error) {
	controller, method, found := strings.Cut(raw, "@")
	if !found || controller == "" || method == "" {
		return Action{}, fmt.Errorf("invalid controller action %q, expected Controller@Method", raw)
	}
	return Action{Controller: controller, Method: method}, nil
}

var contextParam = reflect.TypeOf((*httpInternal.Context)(nil)).String()

// makeHandler adapts a route handler declaration into a HandlerFunc
func (r *Router) makeHandler(handler interface{}) (httpInternal.HandlerFunc, error) {
	switch h := handler.(type) {
	case nil:
		return nil, errors.New("route has no handler")
	case Action:
		return r.controllerHandler(h), nil
	case string:
		action, err := ParseAction(h)
		if err != nil {
			return nil, err
		}
		return r.controllerHandler(action), nil
	}

	if fn, ok := adapt(handler); ok {
		return fn, nil
	}

	if reflect.TypeOf(handler).Kind() == reflect.Func {
		return r.injectedHandler(handler), nil
	}
	return nil, fmt.Errorf("unsupported handler type %T", handler)
}

// adapt recognises the handler signatures that need no injection
func adapt(handler interface{}) (httpInternal.HandlerFunc, bool) {
	switch h := handler.(type) {
	case httpInternal.HandlerFunc:
		return h, true
	case func(*httpInternal.Context) (interface{}, error):
		return h, true
	case func(*httpInternal.Context) (*httpInternal.Response, error):
		return func(c *httpInternal.Context) (interface{}, error) {
			res, err := h(c)
			if err != nil {
				return nil, err
			}
			return res, nil
		}, true
	case func(*httpInternal.Context) error:
		return func(c *httpInternal.Context) (interface{}, error) {
			return nil, h(c)
		}, true
	}
	return nil, false
}

// injectedHandler calls an arbitrary function, resolving its arguments from
// the container and passing the request context by type.
func (r *Router) injectedHandler(fn interface{}) httpInternal.HandlerFunc {
	return func(c *httpInternal.Context) (interface{}, error) {
		if r.container == nil {
			return nil, fmt.Errorf("handler %T needs a container to resolve its arguments", fn)
		}
		return r.container.Call(fn, map[string]interface{}{contextParam: c})
	}
}

// controllerHandler resolves the controller at dispatch time and invokes the
// action method; a missing method is an error, never a silent skip.
func (r *Router) controllerHandler(action Action) httpInternal.HandlerFunc {
	methodName := exportedName(action.Method)

	return func(c *httpInternal.Context) (interface{}, error) {
		if r.container == nil {
			return nil, fmt.Errorf("cannot resolve controller %s: no container", action.Controller)
		}

		controller, err := r.container.Make(action.Controller)
		if err != nil {
			return nil, err
		}

		method := reflect.ValueOf(controller).MethodByName(methodName)
		if !method.IsValid() {
			return nil, httpErrors.NewHTTPErrorWithInternal(500, "Internal Server Error",
				fmt.Errorf("%w: %s (%T) has no method %s", ErrMissingAction, action.Controller, controller, methodName))
		}

		if fn, ok := adapt(method.Interface()); ok {
			return fn(c)
		}
		return r.injectedHandler(method.Interface())(c)
	}
}

func exportedName(name string) string {
	first, size := utf8.DecodeRuneInString(name)
	if first == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(first)) + name[size:]
}
