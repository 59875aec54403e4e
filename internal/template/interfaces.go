// Package template compiles directive templates to html/template and
// renders them as views with layouts, partials, stacks and composers.
package template

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/onyx-go/dispatch/internal/logging"
)

// Data represents template data
type Data map[string]interface{}

// FuncMap represents template functions
type FuncMap map[string]interface{}

// Keys the factory reads from view data
const (
	// AuthKey holds the authenticated user; @auth and @guest test it
	AuthKey = "auth"
	// CSRFTokenKey holds the token @csrf writes into forms
	CSRFTokenKey = "csrf_token"
)

// ErrViewNotFound is returned for names with no template file
var ErrViewNotFound = errors.New("view not found")

// ComposerFunc prepares a view before it renders
type ComposerFunc func(v *View)

// Engine renders named views
type Engine interface {
	Make(name string, data Data) (*View, error)
	Render(ctx context.Context, name string, data map[string]interface{}) (string, error)
	Exists(name string) bool
	Share(key string, value interface{})
	Composer(pattern string, fn ComposerFunc)
}

// Options holds template factory configuration
type Options struct {
	// Path is the views directory on disk. It backs FS when FS is nil and
	// is what hot reload watches.
	Path       string
	FS         fs.FS
	Extensions []string

	// Env is the application environment seen by @env and @production
	Env string

	// Debug enables hot reload
	Debug          bool
	ReloadDebounce time.Duration

	Funcs  FuncMap
	Logger logging.Logger
}

// DefaultOptions returns the default factory configuration
func DefaultOptions() Options {
	return Options{
		Path:           "resources/views",
		Extensions:     []string{".html", ".tmpl"},
		Env:            "production",
		ReloadDebounce: 100 * time.Millisecond,
	}
}

func (d Data) Get(key string) interface{} {
	return d[key]
}

func (d Data) GetString(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func (d Data) Has(key string) bool {
	_, exists := d[key]
	return exists
}

// Merge returns a copy of d overlaid with other
func (d Data) Merge(other Data) Data {
	result := make(Data, len(d)+len(other))
	for k, v := range d {
		result[k] = v
	}
	for k, v := range other {
		result[k] = v
	}
	return result
}
