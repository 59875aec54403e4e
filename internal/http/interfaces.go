package http

import "context"

// HandlerFunc handles a matched request. Any result that is not a *Response
// is converted into one by ToResponse.
type HandlerFunc func(c *Context) (interface{}, error)

// Next hands the request to the rest of the pipeline
type Next func(c *Context) (*Response, error)

// Middleware filters a request on its way in and the response on its way out.
// Returning without calling next short-circuits the remaining pipeline.
type Middleware interface {
	Handle(c *Context, next Next) (*Response, error)
}

// MiddlewareFunc adapts a function to the Middleware interface
type MiddlewareFunc func(c *Context, next Next) (*Response, error)

// Handle implements the Middleware interface
func (f MiddlewareFunc) Handle(c *Context, next Next) (*Response, error) {
	return f(c, next)
}

// Renderer renders a named view
type Renderer interface {
	Render(ctx context.Context, name string, data map[string]interface{}) (string, error)
}

// RouteInfo describes the route that matched the current request
type RouteInfo struct {
	Methods []string
	URI     string
	Name    string
}
