package config

import "github.com/spf13/viper"

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Dispatch")
	v.SetDefault("app.env", Production)
	v.SetDefault("app.debug", false)
	v.SetDefault("app.url", "http://localhost")
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.locale", "en")
	v.SetDefault("app.key", "")
	v.SetDefault("app.cipher", "AES-256-CBC")
	v.SetDefault("app.maintenance", false)
	v.SetDefault("app.maintenance_file", "storage/framework/down")
	v.SetDefault("app.shutdown_timeout", "10s")

	v.SetDefault("db.driver", "sqlite3")
	v.SetDefault("db.host", "127.0.0.1")
	v.SetDefault("db.port", 0)
	v.SetDefault("db.database", "storage/database.sqlite")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.charset", "utf8mb4")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 0)
	v.SetDefault("db.max_idle", 2)
	v.SetDefault("db.max_lifetime", "1h")
	v.SetDefault("db.migrations_table", "migrations")

	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.cookie", "dispatch_session")
	v.SetDefault("session.path", "/")
	v.SetDefault("session.domain", "")
	v.SetDefault("session.secure", false)
	v.SetDefault("session.http_only", true)
	v.SetDefault("session.same_site", "lax")
	v.SetDefault("session.lifetime", "2h")
	v.SetDefault("session.table", "sessions")

	v.SetDefault("log.channel", "console")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age", 28)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("view.path", "resources/views")
	v.SetDefault("view.extension", ".html")

	v.SetDefault("security.csrf_except", []string{})
	v.SetDefault("security.cors_origins", []string{"*"})
	v.SetDefault("security.login_path", "/login")
	v.SetDefault("security.trusted_proxies", []string{})

	v.SetDefault("schedule.session_gc", "@every 30m")
	v.SetDefault("schedule.ratelimit_sweep", "@every 1m")
}
