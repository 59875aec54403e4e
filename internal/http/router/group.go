package router

import (
	"strings"
)

// RouteGroup represents a group of routes with a common prefix, middleware
// and name prefix. The router itself is the root group.
type RouteGroup struct {
	router     *Router
	prefix     string
	middleware []interface{}
	namePrefix string
}

// AddRoute registers a route in the group
func (g *RouteGroup) AddRoute(methods []string, uri string, handler interface{}) *Route {
	route := newRoute(g.router, methods, joinURI(g.prefix, uri), handler)
	route.middleware = append([]interface{}(nil), g.middleware...)
	route.namePrefix = g.namePrefix

	g.router.register(route)
	return route
}

// GET registers a GET route in the group; it also answers HEAD
func (g *RouteGroup) GET(uri string, handler interface{}) *Route {
	return g.AddRoute([]string{"GET"}, uri, handler)
}

// POST registers a POST route in the group
func (g *RouteGroup) POST(uri string, handler interface{}) *Route {
	return g.AddRoute([]string{"POST"}, uri, handler)
}

// PUT registers a PUT route in the group
func (g *RouteGroup) PUT(uri string, handler interface{}) *Route {
	return g.AddRoute([]string{"PUT"}, uri, handler)
}

// PATCH registers a PATCH route in the group
func (g *RouteGroup) PATCH(uri string, handler interface{}) *Route {
	return g.AddRoute([]string{"PATCH"}, uri, handler)
}

// DELETE registers a DELETE route in the group
func (g *RouteGroup) DELETE(uri string, handler interface{}) *Route {
	return g.AddRoute([]string{"DELETE"}, uri, handler)
}

// OPTIONS registers an OPTIONS route in the group
func (g *RouteGroup) OPTIONS(uri string, handler interface{}) *Route {
	return g.AddRoute([]string{"OPTIONS"}, uri, handler)
}

// ANY registers a route for all HTTP methods in the group
func (g *RouteGroup) ANY(uri string, handler interface{}) *Route {
	return g.AddRoute([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}, uri, handler)
}

// Match registers a route for the given methods
func (g *RouteGroup) Match(methods []string, uri string, handler interface{}) *Route {
	return g.AddRoute(methods, uri, handler)
}

// Group creates a nested route group with additional prefix and middleware
func (g *RouteGroup) Group(prefix string, middleware ...interface{}) *RouteGroup {
	return &RouteGroup{
		router:     g.router,
		prefix:     joinURI(g.prefix, prefix),
		middleware: append(append([]interface{}(nil), g.middleware...), middleware...),
		namePrefix: g.namePrefix,
	}
}

// Name appends to the name prefix applied to routes named in this group
func (g *RouteGroup) Name(prefix string) *RouteGroup {
	g.namePrefix += prefix
	return g
}

// Use adds middleware to routes registered in the group from now on
func (g *RouteGroup) Use(middleware ...interface{}) *RouteGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Prefix returns the current prefix of the route group
func (g *RouteGroup) Prefix() string {
	return g.prefix
}

// resourceActions in registration order; "create" precedes "show" so the
// literal segment wins over {id}
var resourceActions = []struct {
	action  string
	methods []string
	suffix  string
}{
	{"index", []string{"GET"}, ""},
	{"create", []string{"GET"}, "/create"},
	{"store", []string{"POST"}, ""},
	{"show", []string{"GET"}, "/{id}"},
	{"edit", []string{"GET"}, "/{id}/edit"},
	{"update", []string{"PUT", "PATCH"}, "/{id}"},
	{"destroy", []string{"DELETE"}, "/{id}"},
}

// Resource registers the RESTful routes for a controller binding. Routes are
// named "<name>.<action>"; only limits the actions registered.
func (g *RouteGroup) Resource(name, controller string, only ...string) []*Route {
	include := make(map[string]bool)
	for _, action := range only {
		include[action] = true
	}

	base := "/" + strings.Trim(name, "/")
	routeName := strings.ReplaceAll(strings.Trim(name, "/"), "/", ".")

	var routes []*Route
	for _, ra := range resourceActions {
		if len(include) > 0 && !include[ra.action] {
			continue
		}
		route := g.AddRoute(ra.methods, base+ra.suffix, Action{Controller: controller, Method: ra.action}).
			Name(routeName + "." + ra.action)
		routes = append(routes, route)
	}
	return routes
}
