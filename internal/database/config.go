package database

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Supported drivers, named as registered with database/sql
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// Config describes one database connection
type Config struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Charset         string        `mapstructure:"charset"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open"`
	MaxIdleConns    int           `mapstructure:"max_idle"`
	ConnMaxLifetime time.Duration `mapstructure:"max_lifetime"`
	MigrationsTable string        `mapstructure:"migrations_table"`
}

// DSN builds the driver-specific data source name
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case MySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.Username
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = c.Host + ":" + strconv.Itoa(orDefault(c.Port, 3306))
		cfg.DBName = c.Database
		cfg.ParseTime = true
		if c.Charset != "" {
			cfg.Params = map[string]string{"charset": c.Charset}
		}
		return cfg.FormatDSN(), nil

	case Postgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   c.Host + ":" + strconv.Itoa(orDefault(c.Port, 5432)),
			Path:   "/" + c.Database,
		}
		if c.Username != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		}
		query := url.Values{}
		if c.SSLMode != "" {
			query.Set("sslmode", c.SSLMode)
		}
		u.RawQuery = query.Encode()
		return u.String(), nil

	case SQLite:
		if c.Database == "" {
			return "", fmt.Errorf("sqlite connection needs a database path or :memory:")
		}
		if c.Database == ":memory:" {
			return "file::memory:?_foreign_keys=on", nil
		}
		return "file:" + c.Database + "?_foreign_keys=on&_busy_timeout=5000", nil

	default:
		return "", fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
