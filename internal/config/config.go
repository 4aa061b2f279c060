// Package config loads and validates service configuration from the
// environment and an optional .env file using Viper.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Notification backends.
const (
	NotifyStore = "store" // same backend as the other stores
	NotifyRedis = "redis"
)

// EnvProduction is the APP_ENV value that enables production checks.
const EnvProduction = "production"

// Config holds service configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the API listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the deployment environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// StoreBackend selects memory, sqlite or postgres storage.
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	SQLitePath   string `mapstructure:"SQLITE_PATH"`
	// DatabaseURL is the Postgres DSN; required when StoreBackend is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SlowQueryMS is the threshold above which queries log a warning.
	SlowQueryMS int `mapstructure:"SLOW_QUERY_MS"`

	// NotifyBackend selects where mailboxes live: the main store or Redis.
	NotifyBackend string `mapstructure:"NOTIFY_BACKEND"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`

	// CSRFKey is 64 hex characters (32 bytes); required in production.
	CSRFKey string `mapstructure:"CSRF_KEY"`
	// TrustedOrigins is a comma-separated list of hosts allowed to post forms.
	TrustedOrigins     string `mapstructure:"TRUSTED_ORIGINS"`
	RateLimitPerSecond int    `mapstructure:"RATE_LIMIT_PER_SECOND"`
	SlowRequestMS      int    `mapstructure:"SLOW_REQUEST_MS"`
	SessionTTL         string `mapstructure:"SESSION_TTL"`

	// AdminEmail is the directory admin ensured at startup.
	AdminEmail string `mapstructure:"ADMIN_EMAIL"`
	AdminName  string `mapstructure:"ADMIN_NAME"`
	// SeedDemo seeds demo client accounts; ignored in production.
	SeedDemo bool `mapstructure:"SEED_DEMO"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
// Env vars override .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is ignored.
// PRE: none
// POST: Returns a validated Config or the first validation error
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_PATH", "vendordesk.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SLOW_QUERY_MS", 50)
	v.SetDefault("NOTIFY_BACKEND", NotifyStore)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "vendordesk")
	v.SetDefault("CSRF_KEY", "")
	v.SetDefault("TRUSTED_ORIGINS", "localhost:8080,127.0.0.1:8080")
	v.SetDefault("RATE_LIMIT_PER_SECOND", 20)
	v.SetDefault("SLOW_REQUEST_MS", 200)
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("ADMIN_EMAIL", "admin@vendordesk.local")
	v.SetDefault("ADMIN_NAME", "Administrator")
	v.SetDefault("SEED_DEMO", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules.
// PRE: none
// POST: Returns nil if the configuration can start the service
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.StoreBackend {
	case BackendMemory, BackendSQLite, BackendPostgres:
	default:
		return fmt.Errorf("config: STORE_BACKEND must be one of memory, sqlite, postgres; got %q", c.StoreBackend)
	}
	if c.StoreBackend == BackendSQLite && c.SQLitePath == "" {
		return errors.New("config: SQLITE_PATH must be set for the sqlite backend")
	}
	if c.StoreBackend == BackendPostgres && c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set for the postgres backend")
	}
	switch c.NotifyBackend {
	case NotifyStore:
	case NotifyRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR must be set for the redis notification backend")
		}
	default:
		return fmt.Errorf("config: NOTIFY_BACKEND must be store or redis; got %q", c.NotifyBackend)
	}
	if c.CSRFKey == "" && c.IsProduction() {
		return errors.New("config: CSRF_KEY must be set when APP_ENV=production")
	}
	if c.CSRFKey != "" {
		if _, err := decodeCSRFKey(c.CSRFKey); err != nil {
			return err
		}
	}
	if c.RateLimitPerSecond <= 0 {
		return errors.New("config: RATE_LIMIT_PER_SECOND must be positive")
	}
	if d, err := time.ParseDuration(c.SessionTTL); err != nil || d <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be a positive duration; got %q", c.SessionTTL)
	}
	if !strings.Contains(c.AdminEmail, "@") {
		return fmt.Errorf("config: ADMIN_EMAIL must be an email address; got %q", c.AdminEmail)
	}
	return nil
}

// IsProduction reports whether production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel returns the configured log level. Validate guarantees it parses.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// CSRFKeyBytes returns the 32-byte CSRF key. Outside production an unset key
// is replaced by a random one, which invalidates tokens on restart.
func (c *Config) CSRFKeyBytes() ([]byte, error) {
	if c.CSRFKey != "" {
		return decodeCSRFKey(c.CSRFKey)
	}
	if c.IsProduction() {
		return nil, errors.New("config: CSRF_KEY must be set when APP_ENV=production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("config: generate csrf key: %w", err)
	}
	slog.Warn("config_event", "event", "csrf_key_generated", "hint", "set CSRF_KEY to keep tokens valid across restarts")
	return key, nil
}

// TrustedOriginList returns the trusted origins from the comma-separated config.
func (c *Config) TrustedOriginList() []string {
	if c == nil || c.TrustedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.TrustedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SessionDuration parses SessionTTL. Returns 24h if unset or invalid.
func (c *Config) SessionDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// SlowQuery returns the slow query threshold.
func (c *Config) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}

// SlowRequest returns the slow request threshold.
func (c *Config) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMS) * time.Millisecond
}

func decodeCSRFKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil || len(key) != 32 {
		return nil, errors.New("config: CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: LOG_LEVEL must be debug, info, warn or error; got %q", s)
	}
	return level, nil
}
