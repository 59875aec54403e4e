package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestToResponse(t *testing.T) {
	t.Run("response passes through", func(t *testing.T) {
		original := Text(202, "accepted")
		res, err := ToResponse(original)
		require.NoError(t, err)
		assert.Same(t, original, res)
	})

	t.Run("string becomes html", func(t *testing.T) {
		res, err := ToResponse("<h1>hello</h1>")
		require.NoError(t, err)
		assert.Equal(t, 200, res.Status)
		assert.Equal(t, "<h1>hello</h1>", string(res.Body))
		assert.Contains(t, res.Header.Get("Content-Type"), "text/html")
	})

	t.Run("bytes become html", func(t *testing.T) {
		res, err := ToResponse([]byte("raw"))
		require.NoError(t, err)
		assert.Equal(t, "raw", string(res.Body))
	})

	t.Run("values become json", func(t *testing.T) {
		res, err := ToResponse(map[string]interface{}{"users": []string{"ada", "grace"}})
		require.NoError(t, err)
		assert.Equal(t, 200, res.Status)
		assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
		assert.Equal(t, "grace", gjson.GetBytes(res.Body, "users.1").String())
	})

	t.Run("nil is an empty 200", func(t *testing.T) {
		res, err := ToResponse(nil)
		require.NoError(t, err)
		assert.Equal(t, 200, res.Status)
		assert.Empty(t, res.Body)

		var typedNil *Response
		res, err = ToResponse(typedNil)
		require.NoError(t, err)
		assert.Equal(t, 200, res.Status)
	})

	t.Run("unencodable value fails", func(t *testing.T) {
		_, err := ToResponse(map[string]interface{}{"ch": make(chan int)})
		assert.Error(t, err)
	})
}

func TestResponseWriteTo(t *testing.T) {
	res := HTML(200, "body")
	res.SetCookie(&http.Cookie{Name: "a", Value: "1"})
	res.WithHeader("X-Test", "yes")

	w := httptest.NewRecorder()
	require.NoError(t, res.WriteTo(w, httptest.NewRequest("GET", "/", nil)))

	assert.Equal(t, 200, w.Code)
	assert.Equal(t, "body", w.Body.String())
	assert.Equal(t, "yes", w.Header().Get("X-Test"))
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "a=1")
}

func TestResponseWriteToHead(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, HTML(200, "body").WriteTo(w, httptest.NewRequest("HEAD", "/", nil)))

	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "4", w.Header().Get("Content-Length"))
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, NoContent().WriteTo(w, nil))

	assert.Equal(t, 204, w.Code)
	assert.Empty(t, w.Header().Get("Content-Length"))
}
