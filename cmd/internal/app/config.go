package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" (default) or "text"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// Browser origins allowed to call the API (e.g. the storefront frontend).
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// Empty DatabaseURL selects the in-memory credential store.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	// AutoMigrate applies the embedded goose migrations on startup.
	AutoMigrate bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, STOREFRONT_LOG_HMAC_KEY MUST be set (>= 32 bytes) so identifier
	// fingerprints in logs are keyed.
	RequireLogHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("STOREFRONT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("STOREFRONT_LOG_LEVEL", "info"),
		LogFormat: EnvString("STOREFRONT_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("STOREFRONT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("STOREFRONT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("STOREFRONT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("STOREFRONT_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("STOREFRONT_HTTP_MAX_HEADER_BYTES", 1<<20),

		CORSAllowedOrigins:   splitList(EnvString("STOREFRONT_CORS_ALLOWED_ORIGINS", "")),
		CORSAllowCredentials: EnvBool("STOREFRONT_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("STOREFRONT_CORS_MAX_AGE_SECONDS", 600),

		DatabaseURL: EnvString("STOREFRONT_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("STOREFRONT_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("STOREFRONT_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("STOREFRONT_DB_SCHEMA", "identity"),

		AutoMigrate: EnvBool("STOREFRONT_AUTO_MIGRATE", false),

		ReadinessRequireDB: EnvBool("STOREFRONT_READINESS_REQUIRE_DB", false),

		RequireLogHMAC: EnvBool("STOREFRONT_REQUIRE_LOG_HMAC", false),
	}
}
