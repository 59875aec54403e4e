package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Response is a buffered HTTP response. Middleware may inspect and modify it
// after the handler runs; nothing is written until WriteTo.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a response with the given status and body
func NewResponse(status int, body []byte) *Response {
	return &Response{
		Status: status,
		Header: make(http.Header),
		Body:   body,
	}
}

// HTML creates a text/html response
func HTML(status int, html string) *Response {
	r := NewResponse(status, []byte(html))
	r.Header.Set("Content-Type", "text/html; charset=utf-8")
	return r
}

// Text creates a text/plain response
func Text(status int, text string) *Response {
	r := NewResponse(status, []byte(text))
	r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return r
}

// JSON creates an application/json response
func JSON(status int, data interface{}) (*Response, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON response: %w", err)
	}
	r := NewResponse(status, body)
	r.Header.Set("Content-Type", "application/json")
	return r, nil
}

// Redirect creates a redirect response
func Redirect(status int, location string) *Response {
	r := NewResponse(status, nil)
	r.Header.Set("Location", location)
	return r
}

// NoContent creates an empty 204 response
func NoContent() *Response {
	return NewResponse(http.StatusNoContent, nil)
}

// WithHeader sets a header and returns the response
func (r *Response) WithHeader(key, value string) *Response {
	r.Header.Set(key, value)
	return r
}

// SetCookie adds a Set-Cookie header
func (r *Response) SetCookie(cookie *http.Cookie) {
	if v := cookie.String(); v != "" {
		r.Header.Add("Set-Cookie", v)
	}
}

// WriteTo writes the response to w. The body is omitted for HEAD requests.
func (r *Response) WriteTo(w http.ResponseWriter, req *http.Request) error {
	header := w.Header()
	for key, values := range r.Header {
		header[key] = append([]string(nil), values...)
	}
	if header.Get("Content-Length") == "" && r.Status != http.StatusNoContent && r.Status != http.StatusNotModified {
		header.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	if req != nil && req.Method == http.MethodHead {
		return nil
	}
	if len(r.Body) == 0 {
		return nil
	}
	_, err := w.Write(r.Body)
	return err
}

// ToResponse converts a handler result into a response. Strings and byte
// slices become a 200 HTML body, nil an empty 200, and any other value is
// serialized as JSON.
func ToResponse(result interface{}) (*Response, error) {
	switch v := result.(type) {
	case *Response:
		if v == nil {
			return NewResponse(http.StatusOK, nil), nil
		}
		return v, nil
	case nil:
		return NewResponse(http.StatusOK, nil), nil
	case string:
		return HTML(http.StatusOK, v), nil
	case []byte:
		return HTML(http.StatusOK, string(v)), nil
	default:
		return JSON(http.StatusOK, v)
	}
}
