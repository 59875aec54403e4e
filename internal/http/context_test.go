package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/onyx-go/dispatch/internal/session"
)

func TestContextRequestMethods(t *testing.T) {
	req := httptest.NewRequest("GET", "/users/?page=2&sort=name", nil)
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "[::1]:5000"
	c := NewContext(req)

	assert.Equal(t, "GET", c.Method())
	assert.Equal(t, "/users", c.Path())
	assert.Equal(t, "2", c.Query("page"))
	assert.Equal(t, "asc", c.QueryDefault("dir", "asc"))
	assert.Equal(t, "test-agent", c.UserAgent())
	assert.Equal(t, "::1", c.RemoteIP())

	page, err := c.QueryInt("page")
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	_, err = c.QueryInt("missing")
	assert.Error(t, err)
}

func TestContextRootPath(t *testing.T) {
	c := NewContext(httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "/", c.Path())
}

func TestContextRemoteIPFromProxyHeaders(t *testing.T) {
	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		peer      string
		forwarded string
		realIP    string
		expected  string
	}{
		{name: "untrusted peer spoofing", peer: "198.51.100.9:4000", forwarded: "203.0.113.7", expected: "198.51.100.9"},
		{name: "untrusted peer real ip", peer: "198.51.100.9:4000", realIP: "203.0.113.7", expected: "198.51.100.9"},
		{name: "trusted peer", peer: "192.0.2.1:1234", forwarded: "203.0.113.7", expected: "203.0.113.7"},
		{name: "trusted chain", peer: "10.0.0.2:1234", forwarded: "203.0.113.7, 10.0.0.1", expected: "203.0.113.7"},
		{name: "client prepends a fake hop", peer: "10.0.0.2:1234", forwarded: "1.2.3.4, 203.0.113.7, 10.0.0.1", expected: "203.0.113.7"},
		{name: "trusted real ip", peer: "10.0.0.2:1234", realIP: "198.51.100.2", expected: "198.51.100.2"},
		{name: "garbage falls back to peer", peer: "10.0.0.2:1234", forwarded: "not-an-ip", expected: "10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.peer
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			c := NewContext(req)
			c.SetTrustedProxies(proxies)
			assert.Equal(t, tt.expected, c.RemoteIP())
		})
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "192.0.2.1", NewContext(req).RemoteIP(), "no proxies are trusted by default")
}

func TestParseTrustedProxies(t *testing.T) {
	all, err := ParseTrustedProxies([]string{"*"})
	require.NoError(t, err)
	assert.True(t, all.Trusts("203.0.113.7"))
	assert.False(t, all.Trusts("not-an-ip"))

	p, err := ParseTrustedProxies([]string{" 127.0.0.1 ", "", "::1", "172.16.0.0/12"})
	require.NoError(t, err)
	assert.True(t, p.Trusts("127.0.0.1"))
	assert.True(t, p.Trusts("::1"))
	assert.True(t, p.Trusts("172.20.1.1"))
	assert.False(t, p.Trusts("127.0.0.2"))

	var none *TrustedProxies
	assert.False(t, none.Trusts("127.0.0.1"))

	_, err = ParseTrustedProxies([]string{"proxy.internal"})
	assert.Error(t, err)
	_, err = ParseTrustedProxies([]string{"10.0.0.0/40"})
	assert.Error(t, err)
}

func TestContextParams(t *testing.T) {
	c := NewContext(httptest.NewRequest("GET", "/users/42", nil))
	c.SetParam("id", "42")

	assert.Equal(t, "42", c.Param("id"))
	assert.Empty(t, c.Param("missing"))

	params := c.Params()
	params["id"] = "changed"
	assert.Equal(t, "42", c.Param("id"))
}

func TestContextClientDetection(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		headers map[string]string
		tls     bool
		proxied bool
		secure  bool
		expects bool
	}{
		{name: "plain browser", path: "/profile", headers: map[string]string{"Accept": "text/html"}},
		{name: "api prefix", path: "/api/users", expects: true},
		{name: "xhr", path: "/profile", headers: map[string]string{"X-Requested-With": "XMLHttpRequest"}, expects: true},
		{name: "accept json", path: "/profile", headers: map[string]string{"Accept": "application/json"}, expects: true},
		{name: "accept vendor json", path: "/profile", headers: map[string]string{"Accept": "application/vnd.api+json"}, expects: true},
		{name: "proxy https", path: "/", headers: map[string]string{"X-Forwarded-Proto": "https"}, proxied: true, secure: true},
		{name: "spoofed proxy https", path: "/", headers: map[string]string{"X-Forwarded-Proto": "https"}},
		{name: "tls", path: "/", tls: true, secure: true},
		{name: "apiary is not api", path: "/apiary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			c := NewContext(req)
			if tt.proxied {
				c.SetTrustedProxies(&TrustedProxies{all: true})
			}

			assert.Equal(t, tt.expects, c.ExpectsJSON())
			assert.Equal(t, tt.secure, c.IsSecure())
		})
	}
}

func TestContextDataMethods(t *testing.T) {
	c := NewContext(httptest.NewRequest("GET", "/", nil))

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("key", "value")
	value, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", value)

	c.SetUser("ada")
	assert.Equal(t, "ada", c.User())
	assert.Nil(t, c.Route())
}

func TestContextBind(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"ada","age":36}`))
	req.Header.Set("Content-Type", "application/json")
	c := NewContext(req)

	var payload struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	require.NoError(t, c.Bind(&payload))
	assert.Equal(t, "ada", payload.Name)
	assert.Equal(t, 36, payload.Age)

	body, err := c.Body()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"ada","age":36}`, string(body))

	plain := NewContext(httptest.NewRequest("POST", "/", strings.NewReader("x")))
	assert.Error(t, plain.Bind(&payload))
}

func TestContextPostFormAndInput(t *testing.T) {
	form := url.Values{"_token": {"abc"}}
	req := httptest.NewRequest("POST", "/submit?q=search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c := NewContext(req)

	assert.Equal(t, "abc", c.PostForm("_token"))
	assert.Equal(t, "abc", c.Input("_token"))
	assert.Equal(t, "search", c.Input("q"))
}

func TestContextCookies(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	c := NewContext(req)

	cookie, err := c.Cookie("session")
	require.NoError(t, err)
	assert.Equal(t, "abc", cookie.Value)

	_, err = c.Cookie("missing")
	assert.ErrorIs(t, err, http.ErrNoCookie)
}

func TestContextResponseHelpers(t *testing.T) {
	c := NewContext(httptest.NewRequest("GET", "/", nil))

	res, err := c.JSON(201, map[string]interface{}{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.Equal(t, int64(7), gjson.GetBytes(res.Body, "id").Int())

	res, err = c.HTML(200, "<p>hi</p>")
	require.NoError(t, err)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/html")

	res, err = c.String(418, "teapot")
	require.NoError(t, err)
	assert.Equal(t, "teapot", string(res.Body))

	res, err = c.Redirect(302, "/login")
	require.NoError(t, err)
	assert.Equal(t, "/login", res.Header.Get("Location"))
}

type recordingRenderer struct {
	data map[string]interface{}
}

func (r *recordingRenderer) Render(_ context.Context, name string, data map[string]interface{}) (string, error) {
	if name == "missing" {
		return "", fmt.Errorf("view %s not found", name)
	}
	r.data = data
	return "<p>" + name + "</p>", nil
}

func TestContextView(t *testing.T) {
	c := NewContext(httptest.NewRequest("GET", "/", nil))
	_, err := c.View(200, "home", nil)
	assert.Error(t, err, "no renderer configured")

	renderer := &recordingRenderer{}
	c.SetRenderer(renderer)
	c.SetSession(session.NewSession("abc", session.NewMemoryHandler()))
	c.SetUser("ada")

	res, err := c.View(201, "home", map[string]interface{}{"title": "Hi"})
	require.NoError(t, err)
	assert.Equal(t, 201, res.Status)
	assert.Equal(t, "<p>home</p>", string(res.Body))
	assert.Equal(t, "Hi", renderer.data["title"])
	assert.Equal(t, "ada", renderer.data["auth"])
	assert.NotEmpty(t, renderer.data["csrf_token"])

	_, err = c.View(200, "missing", nil)
	assert.Error(t, err)
}
