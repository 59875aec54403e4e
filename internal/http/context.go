package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/onyx-go/dispatch/internal/session"
)

// Context carries one request through the middleware pipeline and router.
// It is not safe for concurrent use; a request is handled by one goroutine.
type Context struct {
	request  *http.Request
	params   map[string]string
	queries  url.Values
	data     map[string]interface{}
	route    *RouteInfo
	session  session.Session
	user     interface{}
	body     []byte
	renderer Renderer
	proxies  *TrustedProxies
}

// NewContext creates a new HTTP context
func NewContext(r *http.Request) *Context {
	return &Context{
		request: r,
		params:  make(map[string]string),
		queries: r.URL.Query(),
		data:    make(map[string]interface{}),
	}
}

// Request returns the underlying request
func (c *Context) Request() *http.Request {
	return c.request
}

// Context returns the request's context.Context
func (c *Context) Context() context.Context {
	return c.request.Context()
}

func (c *Context) Method() string {
	return c.request.Method
}

func (c *Context) URL() string {
	return c.request.URL.String()
}

// Path returns the request path without a trailing slash (except for "/")
func (c *Context) Path() string {
	path := c.request.URL.Path
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func (c *Context) Query(key string) string {
	return c.queries.Get(key)
}

func (c *Context) QueryDefault(key, defaultValue string) string {
	if value := c.queries.Get(key); value != "" {
		return value
	}
	return defaultValue
}

// QueryInt parses an integer query parameter
func (c *Context) QueryInt(key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, fmt.Errorf("query parameter %s not found", key)
	}
	return strconv.Atoi(value)
}

// Param returns a route parameter
func (c *Context) Param(key string) string {
	return c.params[key]
}

// Params returns a copy of all route parameters
func (c *Context) Params() map[string]string {
	params := make(map[string]string, len(c.params))
	for k, v := range c.params {
		params[k] = v
	}
	return params
}

// SetParam sets a route parameter value
func (c *Context) SetParam(key, value string) {
	c.params[key] = value
}

func (c *Context) Header(key string) string {
	return c.request.Header.Get(key)
}

func (c *Context) UserAgent() string {
	return c.request.UserAgent()
}

// SetTrustedProxies sets the peers whose forwarding headers are honoured
func (c *Context) SetTrustedProxies(p *TrustedProxies) {
	c.proxies = p
}

func (c *Context) peerIP() string {
	host, _, err := net.SplitHostPort(c.request.RemoteAddr)
	if err != nil {
		return c.request.RemoteAddr
	}
	return host
}

// RemoteIP returns the client address. X-Forwarded-For and X-Real-IP are
// only read when the connection comes from a trusted proxy; the forwarded
// chain is walked from the right and the first untrusted hop wins.
func (c *Context) RemoteIP() string {
	peer := c.peerIP()
	if !c.proxies.Trusts(peer) {
		return peer
	}

	if forwarded := c.request.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			if i == 0 || !c.proxies.Trusts(hop) {
				return hop
			}
		}
	}

	if realIP := strings.TrimSpace(c.request.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}
	return peer
}

// IsSecure reports whether the request arrived over TLS, directly or via a
// trusted proxy
func (c *Context) IsSecure() bool {
	if c.request.TLS != nil {
		return true
	}
	return c.proxies.Trusts(c.peerIP()) && strings.EqualFold(c.request.Header.Get("X-Forwarded-Proto"), "https")
}

// IsXHR reports whether the request was made by XMLHttpRequest
func (c *Context) IsXHR() bool {
	return c.request.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// WantsJSON reports whether the Accept header asks for JSON
func (c *Context) WantsJSON() bool {
	accept := c.request.Header.Get("Accept")
	return strings.Contains(accept, "/json") || strings.Contains(accept, "+json")
}

// IsAPI reports whether the path is under /api
func (c *Context) IsAPI() bool {
	path := c.Path()
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// ExpectsJSON reports whether an error or rejection should be rendered as JSON
func (c *Context) ExpectsJSON() bool {
	return c.IsAPI() || c.IsXHR() || c.WantsJSON()
}

// Set stores a request-scoped value
func (c *Context) Set(key string, value interface{}) {
	c.data[key] = value
}

// Get reads a request-scoped value
func (c *Context) Get(key string) (interface{}, bool) {
	value, exists := c.data[key]
	return value, exists
}

// Body reads the request body once; later calls return the same bytes
func (c *Context) Body() ([]byte, error) {
	if c.body != nil {
		return c.body, nil
	}
	if c.request.Body == nil {
		c.body = []byte{}
		return c.body, nil
	}
	body, err := io.ReadAll(c.request.Body)
	if err != nil {
		return nil, err
	}
	c.body = body
	return body, nil
}

// Bind decodes a JSON request body into obj
func (c *Context) Bind(obj interface{}) error {
	contentType := c.Header("Content-Type")
	if !strings.Contains(contentType, "json") {
		return fmt.Errorf("unsupported content type: %s", contentType)
	}

	body, err := c.Body()
	if err != nil {
		return err
	}
	return json.Unmarshal(body, obj)
}

// PostForm returns a form value from the request body
func (c *Context) PostForm(key string) string {
	return c.request.PostFormValue(key)
}

// Input returns a value from the form body or the query string
func (c *Context) Input(key string) string {
	if value := c.PostForm(key); value != "" {
		return value
	}
	return c.Query(key)
}

func (c *Context) Cookie(name string) (*http.Cookie, error) {
	return c.request.Cookie(name)
}

// Route returns the matched route, or nil before routing
func (c *Context) Route() *RouteInfo {
	return c.route
}

// SetRoute records the matched route
func (c *Context) SetRoute(route *RouteInfo) {
	c.route = route
}

// Session returns the session started for this request, if any
func (c *Context) Session() session.Session {
	return c.session
}

// SetSession attaches a session to the request
func (c *Context) SetSession(s session.Session) {
	c.session = s
}

// User returns the authenticated user, if any
func (c *Context) User() interface{} {
	return c.user
}

// SetUser records the authenticated user
func (c *Context) SetUser(user interface{}) {
	c.user = user
}

// SetRenderer sets the view renderer used by View
func (c *Context) SetRenderer(r Renderer) {
	c.renderer = r
}

// View renders a named view into an HTML response. The authenticated user
// and the session CSRF token are added to the data as "auth" and
// "csrf_token" unless already present.
func (c *Context) View(code int, name string, data map[string]interface{}) (*Response, error) {
	if c.renderer == nil {
		return nil, fmt.Errorf("no view renderer for %s", name)
	}
	merged := make(map[string]interface{}, len(data)+2)
	if c.user != nil {
		merged["auth"] = c.user
	}
	if c.session != nil {
		merged["csrf_token"] = c.session.Token()
	}
	for k, v := range data {
		merged[k] = v
	}

	html, err := c.renderer.Render(c.Context(), name, merged)
	if err != nil {
		return nil, err
	}
	return HTML(code, html), nil
}

// JSON builds a JSON response
func (c *Context) JSON(code int, data interface{}) (*Response, error) {
	return JSON(code, data)
}

// HTML builds an HTML response
func (c *Context) HTML(code int, html string) (*Response, error) {
	return HTML(code, html), nil
}

// String builds a plain-text response
func (c *Context) String(code int, text string) (*Response, error) {
	return Text(code, text), nil
}

// Redirect builds a redirect response
func (c *Context) Redirect(code int, location string) (*Response, error) {
	return Redirect(code, location), nil
}
