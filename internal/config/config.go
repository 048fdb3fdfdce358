// Package config provides centralized configuration management for the
// results import server. Settings come from environment variables with
// defaults and are validated on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Ranking  RankingConfig
	Notify   NotifyConfig
	Presets  PresetsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays at 0 so progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout bounds non-streaming API requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema at startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig holds result file import settings.
type ImportConfig struct {
	// MaxFileSize accepts plain bytes or a KB/MB/GB suffix (default: 20MB)
	MaxFileSize ByteSize `env:"IMPORT_MAX_FILE_SIZE" default:"20MB"`

	// MaxConcurrent is the maximum number of parallel imports (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is the number of results upserted per batch (default: 100)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"100"`

	// Timeout bounds a single import from decode to ranking (default: 5m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"5m"`

	// PreviewRows is the number of data rows parsed for a preview (default: 10)
	PreviewRows int `env:"IMPORT_PREVIEW_ROWS" default:"10"`

	// ResultRetention is how long finished imports stay queryable in memory
	ResultRetention time.Duration `env:"IMPORT_RESULT_RETENTION" default:"5m"`

	// LegacyCharset decodes files that are not valid UTF-8 (default: windows-1252)
	LegacyCharset string `env:"IMPORT_LEGACY_CHARSET" default:"windows-1252"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit is requests per minute for import and preview endpoints (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`

	// Burst is the token bucket size (default: 20)
	Burst int `env:"RATE_LIMIT_BURST" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// JWTSecret signs bearer tokens. Authentication is off when empty.
	JWTSecret string `env:"JWT_SECRET"`

	// JWTIssuer is checked against the iss claim when set
	JWTIssuer string `env:"JWT_ISSUER"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RankingConfig holds settings for the background ranking job.
type RankingConfig struct {
	Enabled bool `env:"RANKING_ENABLED" default:"true"`

	Queue string `env:"RANKING_QUEUE" default:"rankings"`

	MaxWorkers int `env:"RANKING_MAX_WORKERS" default:"4"`

	// Delay postpones recomputation so back-to-back imports collapse into one job
	Delay time.Duration `env:"RANKING_DELAY" default:"2s"`
}

// NotifyConfig holds the import webhook settings.
type NotifyConfig struct {
	// WebhookURL receives a JSON POST per finished import. Disabled when empty.
	WebhookURL string `env:"NOTIFY_WEBHOOK_URL"`

	Timeout time.Duration `env:"NOTIFY_TIMEOUT" default:"5s"`
}

// PresetsConfig points at the YAML file of header mapping presets.
type PresetsConfig struct {
	File string `env:"MAPPING_PRESETS_FILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
