// Package config loads application configuration from defaults, a YAML
// file, a dotenv file and the environment, in increasing precedence.
//
// Keys are dotted ("app.name") and map to environment variables by
// replacing dots with underscores and upper-casing ("APP_NAME").
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Config is a Repository backed by viper
type Config struct {
	v          *viper.Viper
	validators map[string]ConfigValidator
	mutex      sync.RWMutex
}

// New creates a configuration holding only the framework defaults and the
// environment
func New() *Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		v:          v,
		validators: builtinValidators(),
	}
}

// Load builds a configuration from opts and validates it
func Load(opts Options) (*Config, error) {
	c := New()

	if opts.File != "" {
		c.v.SetConfigFile(opts.File)
		c.v.SetConfigType("yaml")
		if err := c.v.ReadInConfig(); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", opts.File, err)
		}
	}

	if opts.EnvFile != "" {
		if err := c.mergeDotEnv(opts.EnvFile); err != nil {
			return nil, err
		}
	}

	for key, value := range opts.Overrides {
		c.v.Set(key, value)
	}

	if opts.SkipValidation {
		return c, nil
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// mergeDotEnv reads a dotenv file and merges the variables that name known
// keys below the process environment
func (c *Config) mergeDotEnv(path string) error {
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		if isNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	values := make(map[string]interface{})
	for _, key := range c.v.AllKeys() {
		name := EnvName(key)
		if !env.IsSet(name) {
			continue
		}
		setNested(values, key, env.Get(name))
	}
	return c.v.MergeConfigMap(values)
}

// EnvName returns the environment variable that overrides key
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}

func setNested(target map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")
	current := target
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Viper exposes the underlying viper instance, e.g. for binding flags
func (c *Config) Viper() *viper.Viper {
	return c.v
}

// AddValidator adds a validator for a configuration key
func (c *Config) AddValidator(key string, validator ConfigValidator) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.validators[key] = validator
}

// Validate runs every registered validator and the application checks
func (c *Config) Validate() error {
	c.mutex.RLock()
	validators := make(map[string]ConfigValidator, len(c.validators))
	for key, validator := range c.validators {
		validators[key] = validator
	}
	c.mutex.RUnlock()

	var errs []error
	for key, validator := range validators {
		if err := validator(key, c.Get(key)); err != nil {
			errs = append(errs, fmt.Errorf("validation failed for key %s: %w", key, err))
		}
	}

	app, err := c.App()
	if err != nil {
		errs = append(errs, err)
	} else if err := app.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Get retrieves a configuration value
func (c *Config) Get(key string, defaultValue ...interface{}) interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.v.IsSet(key) {
		return c.v.Get(key)
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return nil
}

// GetString retrieves a string configuration value
func (c *Config) GetString(key string, defaultValue ...string) string {
	return lookup(c, key, c.v.GetString, defaultValue)
}

// GetInt retrieves an integer configuration value
func (c *Config) GetInt(key string, defaultValue ...int) int {
	return lookup(c, key, c.v.GetInt, defaultValue)
}

// GetInt64 retrieves an int64 configuration value
func (c *Config) GetInt64(key string, defaultValue ...int64) int64 {
	return lookup(c, key, c.v.GetInt64, defaultValue)
}

// GetFloat64 retrieves a float64 configuration value
func (c *Config) GetFloat64(key string, defaultValue ...float64) float64 {
	return lookup(c, key, c.v.GetFloat64, defaultValue)
}

// GetBool retrieves a boolean configuration value
func (c *Config) GetBool(key string, defaultValue ...bool) bool {
	return lookup(c, key, c.v.GetBool, defaultValue)
}

// GetDuration retrieves a time.Duration configuration value. Plain numbers
// are read as nanoseconds, so prefer "30s" style values.
func (c *Config) GetDuration(key string, defaultValue ...time.Duration) time.Duration {
	return lookup(c, key, c.v.GetDuration, defaultValue)
}

// lookup reads key under the read lock, using the default when unset
func lookup[T any](c *Config, key string, read func(string) T, defaultValue []T) T {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if !c.v.IsSet(key) && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return read(key)
}

// GetStringSlice retrieves a string slice; a string is split on commas
func (c *Config) GetStringSlice(key string, defaultValue ...[]string) []string {
	if !c.Has(key) && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	if s, ok := c.Get(key).(string); ok {
		if s == "" {
			return nil
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return lookup(c, key, c.v.GetStringSlice, nil)
}

// GetStringMap retrieves a string map configuration value
func (c *Config) GetStringMap(key string, defaultValue ...map[string]string) map[string]string {
	return lookup(c, key, c.v.GetStringMapString, defaultValue)
}

// Set sets a configuration value after running its validator
func (c *Config) Set(key string, value interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if validator, exists := c.validators[key]; exists {
		if err := validator(key, value); err != nil {
			return fmt.Errorf("validation failed for key %s: %w", key, err)
		}
	}
	c.v.Set(key, value)
	return nil
}

// Has checks if a configuration key exists
func (c *Config) Has(key string) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.v.IsSet(key)
}

// All returns all configuration values as nested maps
func (c *Config) All() map[string]interface{} {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.v.AllSettings()
}

// Env returns the current environment
func (c *Config) Env() string {
	return c.GetString("app.env")
}

// AppName returns the application name
func (c *Config) AppName() string {
	return c.GetString("app.name")
}

// Debug returns whether debug mode is enabled
func (c *Config) Debug() bool {
	return c.GetBool("app.debug")
}

// GetEnv reads an environment variable with a fallback
func GetEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}
