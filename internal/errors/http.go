package errors

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPError is an error that renders with a specific status. Internal is
// kept out of responses unless the handler runs in debug mode.
type HTTPError struct {
	Code     int
	Message  string
	Internal error
	Context  map[string]interface{}
	Headers  map[string]string
}

func (e *HTTPError) Error() string {
	message := e.Message
	if message == "" {
		message = StatusText(e.Code)
	}
	if e.Internal != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, message, e.Internal)
	}
	return fmt.Sprintf("[%d] %s", e.Code, message)
}

// Unwrap exposes Internal to errors.Is and errors.As
func (e *HTTPError) Unwrap() error {
	return e.Internal
}

// WithHeader sets a response header
func (e *HTTPError) WithHeader(key, value string) *HTTPError {
	if e.Headers == nil {
		e.Headers = make(map[string]string)
	}
	e.Headers[key] = value
	return e
}

// With adds a field to the rendered error body
func (e *HTTPError) With(key string, value interface{}) *HTTPError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewHTTPError creates an error rendering with code and message. An empty
// message renders as the status text.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// NewHTTPErrorWithInternal wraps internal, which is only shown in debug mode
func NewHTTPErrorWithInternal(code int, message string, internal error) *HTTPError {
	return &HTTPError{Code: code, Message: message, Internal: internal}
}

// NotFound is returned when no route matches
func NotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, message)
}

// MethodNotAllowed is returned when the path matches under other methods.
// allowed becomes the Allow header.
func MethodNotAllowed(allowed ...string) *HTTPError {
	return NewHTTPError(http.StatusMethodNotAllowed, "").
		WithHeader("Allow", strings.Join(allowed, ", "))
}

// TooManyRequests asks the client to come back after retryAfter
func TooManyRequests(retryAfter time.Duration) *HTTPError {
	e := NewHTTPError(http.StatusTooManyRequests, "Too Many Attempts")
	if retryAfter > 0 {
		e.WithHeader("Retry-After", strconv.Itoa(int((retryAfter+time.Second-1)/time.Second)))
	}
	return e
}

// ServiceUnavailable is returned while the application is down
func ServiceUnavailable(message string, retryAfter time.Duration) *HTTPError {
	e := NewHTTPError(http.StatusServiceUnavailable, message)
	if retryAfter > 0 {
		e.WithHeader("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
	}
	return e
}

// StatusText is http.StatusText with a fallback for unregistered codes,
// including 419 Page Expired
func StatusText(code int) string {
	if code == 419 {
		return "Page Expired"
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "HTTP Error " + strconv.Itoa(code)
}
