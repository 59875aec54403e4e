package router

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// URL generates the path for a named route. Parameters that do not appear
// in the pattern are appended as a query string.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	route := r.Named(name)
	if route == nil {
		return "", fmt.Errorf("route %q not defined", name)
	}

	used := make(map[string]bool)
	var missing []string

	path := placeholder.ReplaceAllStringFunc(route.uri, func(token string) string {
		m := placeholder.FindStringSubmatch(token)
		param, optional := m[1], m[2] == "?"

		value, ok := params[param]
		if !ok || value == "" {
			if !optional {
				missing = append(missing, param)
			}
			return ""
		}
		used[param] = true
		return url.PathEscape(value)
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing required parameters for route %q: %s", name, strings.Join(missing, ", "))
	}

	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	extra := url.Values{}
	keys := make([]string, 0, len(params))
	for key := range params {
		if !used[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		extra.Set(key, params[key])
	}
	if len(extra) > 0 {
		path += "?" + extra.Encode()
	}
	return path, nil
}
