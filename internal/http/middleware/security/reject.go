package security

import (
	"fmt"
	"html"

	httpInternal "github.com/onyx-go/dispatch/internal/http"
)

// reject builds a short-circuit response for a refused request, as JSON for
// API clients and as a small HTML page otherwise
func reject(c *httpInternal.Context, status int, title, message string) (*httpInternal.Response, error) {
	if c.ExpectsJSON() {
		return httpInternal.JSON(status, map[string]interface{}{
			"error":   title,
			"message": message,
		})
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%d %s</title></head>
<body>
<h1>%s</h1>
<p>%s</p>
</body>
</html>`, status, html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
	return httpInternal.HTML(status, page), nil
}
