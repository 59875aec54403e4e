package errors

import (
	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// ErrorReporter interface for custom error reporting
type ErrorReporter interface {
	Report(err error, c *httpInternal.Context)
}

// ReporterFunc adapts a function to ErrorReporter
type ReporterFunc func(err error, c *httpInternal.Context)

// Report implements ErrorReporter
func (f ReporterFunc) Report(err error, c *httpInternal.Context) {
	f(err, c)
}
