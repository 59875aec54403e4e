package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/onyx-go/dispatch/internal/database"
	"github.com/onyx-go/dispatch/internal/schedule"
)

// builtinValidators guard the keys the framework itself reads
func builtinValidators() map[string]ConfigValidator {
	return map[string]ConfigValidator{
		"app.url":                  URLValidator,
		"app.shutdown_timeout":     DurationValidator(false),
		"db.driver":                OneOfValidator(database.MySQL, database.Postgres, database.SQLite),
		"db.port":                  IntRangeValidator(0, 65535),
		"db.max_lifetime":          DurationValidator(true),
		"session.driver":           OneOfValidator("memory", "database"),
		"session.same_site":        OneOfValidator("lax", "strict", "none", "default"),
		"session.lifetime":         DurationValidator(false),
		"log.channel":              OneOfValidator("console", "file", "null"),
		"log.level":                OneOfValidator("debug", "info", "warn", "warning", "error"),
		"schedule.session_gc":      CronValidator,
		"schedule.ratelimit_sweep": CronValidator,
	}
}

// RequiredValidator rejects nil and blank values
func RequiredValidator(key string, value interface{}) error {
	if value == nil {
		return fmt.Errorf("%s is required", key)
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s cannot be empty", key)
	}
	return nil
}

// IntRangeValidator accepts integers, or strings holding one, in [lo, hi]
func IntRangeValidator(lo, hi int) ConfigValidator {
	return func(key string, value interface{}) error {
		n, err := cast.ToIntE(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %v", key, value)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%s must be between %d and %d, got %d", key, lo, hi, n)
		}
		return nil
	}
}

// DurationValidator accepts "90s", "2h" or a nanosecond count. Zero is
// only accepted when allowZero is set; negative durations never are.
func DurationValidator(allowZero bool) ConfigValidator {
	return func(key string, value interface{}) error {
		d, err := cast.ToDurationE(value)
		if err != nil {
			return fmt.Errorf("%s must be a duration such as 30s or 2h, got %v", key, value)
		}
		if d < 0 || (d == 0 && !allowZero) {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
		return nil
	}
}

// RegexValidator requires a string matching pattern
func RegexValidator(pattern string) ConfigValidator {
	re := regexp.MustCompile(pattern)
	return func(key string, value interface{}) error {
		if !re.MatchString(cast.ToString(value)) {
			return fmt.Errorf("%s does not match %s", key, pattern)
		}
		return nil
	}
}

// OneOfValidator requires one of the allowed strings, ignoring case
func OneOfValidator(allowed ...string) ConfigValidator {
	return func(key string, value interface{}) error {
		s := cast.ToString(value)
		for _, a := range allowed {
			if strings.EqualFold(s, a) {
				return nil
			}
		}
		return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), s)
	}
}

// URLValidator requires an absolute http(s) URL
func URLValidator(key string, value interface{}) error {
	u, err := url.Parse(cast.ToString(value))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %v", key, value)
	}
	return nil
}

// CronValidator accepts a cron expression or descriptor; blank disables
// the job and is allowed
func CronValidator(key string, value interface{}) error {
	expr := strings.TrimSpace(cast.ToString(value))
	if expr == "" {
		return nil
	}
	if err := schedule.Validate(expr); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// ChainValidator runs validators in order and stops at the first failure
func ChainValidator(validators ...ConfigValidator) ConfigValidator {
	return func(key string, value interface{}) error {
		for _, v := range validators {
			if err := v(key, value); err != nil {
				return err
			}
		}
		return nil
	}
}
