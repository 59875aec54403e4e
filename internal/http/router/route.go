package router

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// placeholder matches {name}, {name?} and {name:constraint}
var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\?)?(?::([^{}]+))?\}`)

// Route represents a single registered route. Its URI is fixed at
// registration; the remaining attributes may be set until the router is built.
type Route struct {
	methods    []string
	uri        string
	handler    interface{}
	middleware []interface{}
	wheres     map[string]string
	name       string
	namePrefix string

	regex      *regexp.Regexp
	paramNames map[string]string // capture group -> parameter name
	invoke     httpInternal.HandlerFunc
	router     *Router
}

func newRoute(router *Router, methods []string, uri string, handler interface{}) *Route {
	normalized := make([]string, 0, len(methods))
	seen := make(map[string]bool)
	for _, method := range methods {
		method = strings.ToUpper(method)
		if !seen[method] {
			seen[method] = true
			normalized = append(normalized, method)
		}
	}

	return &Route{
		methods: normalized,
		uri:     normalizeURI(uri),
		handler: handler,
		wheres:  make(map[string]string),
		router:  router,
	}
}

// Name sets the route name, prefixed by any enclosing group name prefix
func (rt *Route) Name(name string) *Route {
	rt.mustBeMutable()
	rt.name = rt.namePrefix + name
	return rt
}

// Where constrains a parameter with a regular expression
func (rt *Route) Where(param, pattern string) *Route {
	rt.mustBeMutable()
	rt.wheres[param] = pattern
	return rt
}

// WhereNumber constrains a parameter to digits
func (rt *Route) WhereNumber(param string) *Route {
	return rt.Where(param, "[0-9]+")
}

// WhereAlpha constrains a parameter to letters
func (rt *Route) WhereAlpha(param string) *Route {
	return rt.Where(param, "[a-zA-Z]+")
}

// Middleware appends middleware to the route
func (rt *Route) Middleware(middleware ...interface{}) *Route {
	rt.mustBeMutable()
	rt.middleware = append(rt.middleware, middleware...)
	return rt
}

// Methods returns the HTTP methods the route answers
func (rt *Route) Methods() []string {
	return append([]string(nil), rt.methods...)
}

// URI returns the route pattern
func (rt *Route) URI() string {
	return rt.uri
}

// GetName returns the route name, or "" when unnamed
func (rt *Route) GetName() string {
	return rt.name
}

// Info describes the route for the request context
func (rt *Route) Info() *httpInternal.RouteInfo {
	return &httpInternal.RouteInfo{Methods: rt.Methods(), URI: rt.uri, Name: rt.name}
}

// allows reports whether the route answers method; GET routes answer HEAD
func (rt *Route) allows(method string) bool {
	for _, m := range rt.methods {
		if m == method || (method == "HEAD" && m == "GET") {
			return true
		}
	}
	return false
}

func (rt *Route) mustBeMutable() {
	if rt.router != nil && rt.router.frozen.Load() {
		panic(fmt.Sprintf("router: route %s cannot be modified after Build", rt.uri))
	}
}

// compile builds the matching expression from the URI and constraints
func (rt *Route) compile() error {
	var b strings.Builder
	b.WriteString("^")

	groups := make(map[string]string)
	last := 0
	for i, m := range placeholder.FindAllStringSubmatchIndex(rt.uri, -1) {
		literal := rt.uri[last:m[0]]
		name := rt.uri[m[2]:m[3]]
		optional := m[4] >= 0

		constraint := "[^/]+"
		if m[6] >= 0 {
			constraint = inlineConstraint(rt.uri[m[6]:m[7]])
		}
		if where, ok := rt.wheres[name]; ok {
			constraint = where
		}

		group := fmt.Sprintf("p%d", i)
		groups[group] = name
		capture := fmt.Sprintf("(?P<%s>%s)", group, constraint)

		switch {
		case optional && strings.HasSuffix(literal, "/"):
			b.WriteString(regexp.QuoteMeta(strings.TrimSuffix(literal, "/")))
			b.WriteString("(?:/" + capture + ")?")
		case optional:
			b.WriteString(regexp.QuoteMeta(literal))
			b.WriteString(capture + "?")
		default:
			b.WriteString(regexp.QuoteMeta(literal))
			b.WriteString(capture)
		}
		last = m[1]
	}
	b.WriteString(regexp.QuoteMeta(rt.uri[last:]))
	b.WriteString("$")

	regex, err := regexp.Compile(b.String())
	if err != nil {
		return fmt.Errorf("route %s: invalid pattern: %w", rt.uri, err)
	}
	rt.regex = regex
	rt.paramNames = groups
	return nil
}

// match returns the extracted parameters when path matches the route
func (rt *Route) match(path string) (map[string]string, bool) {
	matches := rt.regex.FindStringSubmatch(path)
	if matches == nil {
		return nil, false
	}

	params := make(map[string]string)
	for i, group := range rt.regex.SubexpNames() {
		name, ok := rt.paramNames[group]
		if !ok || matches[i] == "" {
			continue
		}
		params[name] = matches[i]
	}
	return params, true
}

// parameterNames lists the placeholders in URI order
func (rt *Route) parameterNames() []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(rt.uri, -1) {
		names = append(names, m[1])
	}
	return names
}

func inlineConstraint(constraint string) string {
	switch constraint {
	case "int", "number":
		return "[0-9]+"
	case "alpha":
		return "[a-zA-Z]+"
	case "alphanum":
		return "[a-zA-Z0-9]+"
	case "uuid":
		return "[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}"
	case "slug":
		return "[a-z0-9]+(?:-[a-z0-9]+)*"
	default:
		return constraint
	}
}

func normalizeURI(uri string) string {
	trimmed := strings.Trim(uri, "/")
	if trimmed == "" {
		return "/"
	}
	return "/" + trimmed
}

func joinURI(prefix, uri string) string {
	return normalizeURI(strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(uri, "/"))
}

// Listing is the introspection view of a route
type Listing struct {
	Methods    []string `json:"methods" yaml:"methods"`
	URI        string   `json:"uri" yaml:"uri"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Action     string   `json:"action" yaml:"action"`
	Middleware []string `json:"middleware,omitempty" yaml:"middleware,omitempty"`
}

func (rt *Route) listing() Listing {
	methods := rt.Methods()
	sort.Strings(methods)

	middleware := make([]string, 0, len(rt.middleware))
	for _, m := range rt.middleware {
		if name, ok := m.(string); ok {
			middleware = append(middleware, name)
		} else {
			middleware = append(middleware, fmt.Sprintf("%T", m))
		}
	}

	return Listing{
		Methods:    methods,
		URI:        rt.uri,
		Name:       rt.name,
		Action:     describeHandler(rt.handler),
		Middleware: middleware,
	}
}

func describeHandler(handler interface{}) string {
	switch h := handler.(type) {
	case Action:
		return h.String()
	case string:
		return h
	case nil:
		return "<none>"
	}
	if reflect.TypeOf(handler).Kind() == reflect.Func {
		return "Closure"
	}
	return fmt.Sprintf("%T", handler)
}
