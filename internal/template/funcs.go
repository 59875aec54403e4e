package template

import (
	"encoding/json"
	"fmt"
	"html/template"
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// defaultFuncs are available to every view. Comparisons come from
// html/template's own builtins.
func defaultFuncs(env string) template.FuncMap {
	return template.FuncMap{
		"raw":    raw,
		"json":   toJSON,
		"isset":  isset,
		"dict":   dict,
		"merge":  merge,
		"in_env": inEnv(env),

		"default": func(fallback, value interface{}) interface{} {
			if isZero(value) {
				return fallback
			}
			return value
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": func(s string) string {
			return cases.Title(language.Und).String(s)
		},
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"mul": func(a, b int) int { return a * b },
		"div": func(a, b int) int {
			if b != 0 {
				return a / b
			}
			return 0
		},
		"mod": func(a, b int) int {
			if b != 0 {
				return a % b
			}
			return 0
		},
		"now": time.Now,
		"formatTime": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"contains":  strings.Contains,
		"hasPrefix": strings.HasPrefix,
		"hasSuffix": strings.HasSuffix,
		"trim":      strings.TrimSpace,
		"replace":   strings.ReplaceAll,
	}
}

func raw(v interface{}) template.HTML {
	switch s := v.(type) {
	case nil:
		return ""
	case template.HTML:
		return s
	case string:
		return template.HTML(s)
	default:
		return template.HTML(fmt.Sprint(v))
	}
}

// toJSON encodes v for a script context; encoding/json already escapes <, >
// and & inside strings
func toJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

func isset(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}

func isZero(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() == 0
	}
	return rv.IsZero()
}

func dict(pairs ...interface{}) (map[string]interface{}, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict expects key/value pairs")
	}
	m := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// merge overlays extra on base for @include data
func merge(base, extra interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, v := range []interface{}{base, extra} {
		switch m := v.(type) {
		case nil:
		case Data:
			for k, val := range m {
				result[k] = val
			}
		case map[string]interface{}:
			for k, val := range m {
				result[k] = val
			}
		default:
			return nil, fmt.Errorf("include data must be a map, got %T", v)
		}
	}
	return result, nil
}

func inEnv(current string) func(envs ...string) bool {
	return func(envs ...string) bool {
		for _, env := range envs {
			if env == current {
				return true
			}
		}
		return false
	}
}
