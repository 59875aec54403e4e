package errors

import (
	"sort"
	"strings"
)

// ValidationErrors maps input fields to their failure messages. It renders
// as 422 with the map under "validation_errors".
type ValidationErrors map[string][]string

// Add records a message for field
func (v ValidationErrors) Add(field, message string) {
	v[field] = append(v[field], message)
}

// Has reports whether field failed
func (v ValidationErrors) Has(field string) bool {
	return len(v[field]) > 0
}

// Empty reports whether nothing failed
func (v ValidationErrors) Empty() bool {
	return len(v) == 0
}

// Err returns v as an error, or nil when nothing failed
func (v ValidationErrors) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(v[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
