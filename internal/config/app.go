package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/onyx-go/dispatch/internal/database"
	"github.com/onyx-go/dispatch/internal/logging"
	"github.com/onyx-go/dispatch/internal/schedule"
	"github.com/onyx-go/dispatch/internal/session"
)

// Environment names
const (
	Local      = "local"
	Testing    = "testing"
	Staging    = "staging"
	Production = "production"
)

// Supported encryption ciphers and their key sizes in bytes
var ciphers = map[string]int{
	"AES-128-CBC": 16,
	"AES-256-CBC": 32,
	"AES-128-GCM": 16,
	"AES-256-GCM": 32,
}

// Ciphers lists the supported cipher names
func Ciphers() []string {
	names := make([]string, 0, len(ciphers))
	for name := range ciphers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AppConfig holds the core application settings
type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Debug           bool          `mapstructure:"debug"`
	URL             string        `mapstructure:"url"`
	Addr            string        `mapstructure:"addr"`
	Timezone        string        `mapstructure:"timezone"`
	Locale          string        `mapstructure:"locale"`
	Key             string        `mapstructure:"key"`
	Cipher          string        `mapstructure:"cipher"`
	Maintenance     bool          `mapstructure:"maintenance"`
	MaintenanceFile string        `mapstructure:"maintenance_file"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// App decodes the "app" section
func (c *Config) App() (AppConfig, error) {
	s, err := c.settings()
	return s.App, err
}

// Validate checks the settings that must be right before serving
func (a AppConfig) Validate() error {
	var problems []string

	if strings.TrimSpace(a.Name) == "" {
		problems = append(problems, "APP_NAME cannot be empty")
	}

	size, ok := ciphers[a.Cipher]
	if !ok {
		problems = append(problems, fmt.Sprintf("unsupported cipher %q; supported ciphers are AES-128-CBC, AES-256-CBC, AES-128-GCM and AES-256-GCM", a.Cipher))
	}

	if a.Key == "" {
		if !a.IsLocal() && !a.IsTesting() {
			problems = append(problems, "APP_KEY is required; run key:generate")
		}
	} else if ok {
		key, err := a.DecodedKey()
		if err != nil {
			problems = append(problems, err.Error())
		} else if len(key) != size {
			problems = append(problems, fmt.Sprintf("APP_KEY must be %d bytes for %s, got %d", size, a.Cipher, len(key)))
		}
	}

	if a.Timezone != "" {
		if _, err := time.LoadLocation(a.Timezone); err != nil {
			problems = append(problems, fmt.Sprintf("invalid APP_TIMEZONE %q", a.Timezone))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DecodedKey returns the raw key bytes. Keys prefixed "base64:" are decoded.
func (a AppConfig) DecodedKey() ([]byte, error) {
	if encoded, ok := strings.CutPrefix(a.Key, "base64:"); ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("APP_KEY is not valid base64: %w", err)
		}
		return key, nil
	}
	return []byte(a.Key), nil
}

func (a AppConfig) IsLocal() bool { return a.Env == Local || a.Env == "development" }

func (a AppConfig) IsTesting() bool { return a.Env == Testing || a.Env == "test" }

func (a AppConfig) IsProduction() bool { return a.Env == Production }

// GenerateKey returns a random "base64:" key sized for cipher
func GenerateKey(cipher string) (string, error) {
	size, ok := ciphers[cipher]
	if !ok {
		return "", fmt.Errorf("unsupported cipher %q", cipher)
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return "base64:" + base64.StdEncoding.EncodeToString(key), nil
}

// Database decodes the "db" section
func (c *Config) Database() (database.Config, error) {
	s, err := c.settings()
	return s.DB, err
}

// Logging decodes the "log" section
func (c *Config) Logging() (logging.Config, error) {
	s, err := c.settings()
	return s.Log, err
}

// Session builds the session manager settings from the "session" section
func (c *Config) Session() session.Config {
	sameSite := http.SameSiteLaxMode
	switch strings.ToLower(c.GetString("session.same_site")) {
	case "strict":
		sameSite = http.SameSiteStrictMode
	case "none":
		sameSite = http.SameSiteNoneMode
	}

	return session.Config{
		CookieName:   c.GetString("session.cookie"),
		CookiePath:   c.GetString("session.path"),
		CookieDomain: c.GetString("session.domain"),
		Secure:       c.GetBool("session.secure"),
		HTTPOnly:     c.GetBool("session.http_only"),
		SameSite:     sameSite,
		Lifetime:     c.GetDuration("session.lifetime"),
	}
}

// Schedule decodes the "schedule" section
func (c *Config) Schedule() (schedule.Maintenance, error) {
	s, err := c.settings()
	return s.Schedule, err
}

// settings is the typed view of the sections that have one
type settings struct {
	App AppConfig       `mapstructure:"app"`
	DB  database.Config `mapstructure:"db"`
	Log logging.Config  `mapstructure:"log"`

	Schedule schedule.Maintenance `mapstructure:"schedule"`
}

// settings decodes every key at once so environment overrides of nested
// keys are honoured
func (c *Config) settings() (settings, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var s settings
	if err := c.v.Unmarshal(&s); err != nil {
		return settings{}, fmt.Errorf("config: decode: %w", err)
	}
	return s, nil
}
