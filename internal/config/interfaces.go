package config

import "time"

// ConfigValidator function type for validating configuration values
type ConfigValidator func(key string, value interface{}) error

// Repository interface for configuration storage and retrieval
type Repository interface {
	Get(key string, defaultValue ...interface{}) interface{}
	GetString(key string, defaultValue ...string) string
	GetInt(key string, defaultValue ...int) int
	GetInt64(key string, defaultValue ...int64) int64
	GetFloat64(key string, defaultValue ...float64) float64
	GetBool(key string, defaultValue ...bool) bool
	GetDuration(key string, defaultValue ...time.Duration) time.Duration
	GetStringSlice(key string, defaultValue ...[]string) []string
	GetStringMap(key string, defaultValue ...map[string]string) map[string]string
	Set(key string, value interface{}) error
	Has(key string) bool
	All() map[string]interface{}
}

// Options control where configuration is loaded from
type Options struct {
	// File is an optional YAML config file. A missing file is not an error.
	File string

	// EnvFile is an optional dotenv file, usually ".env"
	EnvFile string

	// Overrides are applied last, above the environment
	Overrides map[string]interface{}

	// SkipValidation loads the sources without running the validators,
	// e.g. to generate the APP_KEY that validation would demand
	SkipValidation bool
}
