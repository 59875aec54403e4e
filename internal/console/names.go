package console

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.English)

// words splits "user_profile", "user-profile", "UserProfile" and
// "userProfile" into lower-case words
func words(name string) []string {
	var (
		out     []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.ToLower(string(current)))
			current = current[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && len(current) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return out
}

// studly converts name to an exported Go identifier, "user_profile" ->
// "UserProfile"
func studly(name string) string {
	var b strings.Builder
	for _, w := range words(name) {
		b.WriteString(title.String(w))
	}
	return b.String()
}

// snake converts name to a file name stem, "UserProfile" -> "user_profile"
func snake(name string) string {
	return strings.Join(words(name), "_")
}

// withSuffix appends suffix unless the studly name already ends with it
func withSuffix(name, suffix string) string {
	s := studly(name)
	if suffix != "" && !strings.HasSuffix(s, suffix) {
		s += suffix
	}
	return s
}
