package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"html"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/onyx-go/dispatch/internal/app"
	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// ErrorHandler converts errors escaping the pipeline into responses
type ErrorHandler struct {
	debug     bool
	reporters []ErrorReporter
	renderer  httpInternal.Renderer
	templates map[int]string // HTTP status code to view name mapping
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(debug bool) *ErrorHandler {
	return &ErrorHandler{
		debug:     debug,
		reporters: make([]ErrorReporter, 0),
		templates: make(map[int]string),
	}
}

// AddReporter adds an error reporter; reporters see server errors only
func (eh *ErrorHandler) AddReporter(reporter ErrorReporter) {
	eh.reporters = append(eh.reporters, reporter)
}

// SetRenderer sets the view renderer used for status templates
func (eh *ErrorHandler) SetRenderer(renderer httpInternal.Renderer) {
	eh.renderer = renderer
}

// SetTemplate sets a view for a specific HTTP status code
func (eh *ErrorHandler) SetTemplate(statusCode int, view string) {
	eh.templates[statusCode] = view
}

// SetDebug enables or disables debug mode
func (eh *ErrorHandler) SetDebug(debug bool) {
	eh.debug = debug
}

// IsDebug returns current debug mode state
func (eh *ErrorHandler) IsDebug() bool {
	return eh.debug
}

// problem is the renderable form of an error
type problem struct {
	status  int
	message string
	context map[string]interface{}
	headers map[string]string
}

// Render converts err into a JSON or HTML response depending on what the
// client expects.
func (eh *ErrorHandler) Render(c *httpInternal.Context, err error) *httpInternal.Response {
	if err == nil {
		err = NewHTTPError(http.StatusInternalServerError, "")
	}
	p := eh.classify(err)

	if p.status >= http.StatusInternalServerError {
		for _, reporter := range eh.reporters {
			reporter.Report(err, c)
		}
	}

	var res *httpInternal.Response
	if c.ExpectsJSON() {
		res = eh.renderJSON(p, err)
	} else {
		res = eh.renderHTML(c.Context(), p, err)
	}

	keys := make([]string, 0, len(p.headers))
	for k := range p.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		res.Header.Set(k, p.headers[k])
	}
	return res
}

// Status returns the HTTP status an error renders with
func (eh *ErrorHandler) Status(err error) int {
	return eh.classify(err).status
}

func (eh *ErrorHandler) classify(err error) problem {
	var httpErr *HTTPError
	if stdErrors.As(err, &httpErr) {
		message := httpErr.Message
		if message == "" {
			message = StatusText(httpErr.Code)
		}
		if eh.debug && httpErr.Internal != nil && httpErr.Code >= http.StatusInternalServerError {
			message = fmt.Sprintf("%s: %v", message, httpErr.Internal)
		}
		return problem{status: httpErr.Code, message: message, context: httpErr.Context, headers: httpErr.Headers}
	}

	var invalid ValidationErrors
	if stdErrors.As(err, &invalid) {
		return problem{
			status:  http.StatusUnprocessableEntity,
			message: "Validation failed",
			context: map[string]interface{}{"validation_errors": map[string][]string(invalid)},
		}
	}

	message := "Internal Server Error"
	if eh.debug {
		message = err.Error()
	}
	p := problem{status: http.StatusInternalServerError, message: message}
	var containerErr *app.ContainerError
	if eh.debug && stdErrors.As(err, &containerErr) {
		p.context = map[string]interface{}{"abstract": containerErr.Abstract}
	}
	return p
}

func (eh *ErrorHandler) renderJSON(p problem, originalErr error) *httpInternal.Response {
	body := map[string]interface{}{
		"message":     p.message,
		"status_code": p.status,
		"timestamp":   time.Now().Format(time.RFC3339),
	}
	for k, v := range p.context {
		body[k] = v
	}

	response := map[string]interface{}{"error": body}
	if eh.debug {
		response["debug"] = eh.getDebugInfo(originalErr)
	}

	res, err := httpInternal.JSON(p.status, response)
	if err != nil {
		// context values that cannot be encoded are dropped
		res, _ = httpInternal.JSON(p.status, map[string]interface{}{
			"error": map[string]interface{}{"message": p.message, "status_code": p.status},
		})
	}
	return res
}

func (eh *ErrorHandler) renderHTML(ctx context.Context, p problem, originalErr error) *httpInternal.Response {
	if view, exists := eh.templates[p.status]; exists && eh.renderer != nil {
		data := map[string]interface{}{
			"status_code": p.status,
			"message":     p.message,
			"context":     p.context,
		}
		if eh.debug {
			data["debug"] = eh.getDebugInfo(originalErr)
		}

		if rendered, err := eh.renderer.Render(ctx, view, data); err == nil {
			return httpInternal.HTML(p.status, rendered)
		}
	}

	return httpInternal.HTML(p.status, eh.generateDefaultHTML(p, originalErr))
}

func (eh *ErrorHandler) generateDefaultHTML(p problem, originalErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<!DOCTYPE html>
<html>
<head>
    <title>Error %d</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; background: #f8f9fa; }
        .error-container { background: white; padding: 30px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .error-code { color: #dc3545; font-size: 48px; font-weight: bold; margin-bottom: 10px; }
        .error-message { color: #495057; font-size: 24px; margin-bottom: 20px; }
        .error-details { background: #f8f9fa; padding: 15px; border-radius: 4px; margin-top: 20px; }
        .debug-info { background: #fff3cd; padding: 15px; border-radius: 4px; margin-top: 20px; border-left: 4px solid #ffc107; }
        .stack-trace { background: #f8f9fa; padding: 10px; border-radius: 4px; font-family: monospace; white-space: pre-wrap; font-size: 12px; }
    </style>
</head>
<body>
    <div class="error-container">
        <div class="error-code">%d</div>
        <div class="error-message">%s</div>`, p.status, p.status, html.EscapeString(p.message))

	if len(p.context) > 0 {
		keys := make([]string, 0, len(p.context))
		for k := range p.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString(`<div class="error-details"><h4>Additional Information:</h4><ul>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<li><strong>%s:</strong> %s</li>", html.EscapeString(k), html.EscapeString(fmt.Sprint(p.context[k])))
		}
		b.WriteString(`</ul></div>`)
	}

	if eh.debug && originalErr != nil {
		debugInfo := eh.getDebugInfo(originalErr)
		fmt.Fprintf(&b, `<div class="debug-info">
            <h4>Debug Information:</h4>
            <p><strong>Error:</strong> %s</p>`, html.EscapeString(originalErr.Error()))

		if stackTrace, ok := debugInfo["stack_trace"].(string); ok {
			fmt.Fprintf(&b, `<h4>Stack Trace:</h4><div class="stack-trace">%s</div>`, html.EscapeString(stackTrace))
		}
		b.WriteString(`</div>`)
	}

	b.WriteString(`
    </div>
</body>
</html>`)

	return b.String()
}

func (eh *ErrorHandler) getDebugInfo(err error) map[string]interface{} {
	debugInfo := map[string]interface{}{
		"error_type": fmt.Sprintf("%T", err),
		"error":      err.Error(),
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	stack := make([]byte, 4096)
	length := runtime.Stack(stack, false)
	debugInfo["stack_trace"] = string(stack[:length])

	debugInfo["go_version"] = runtime.Version()
	debugInfo["num_goroutines"] = runtime.NumGoroutine()

	return debugInfo
}
