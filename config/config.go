// Package config loads Levelington's configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// Environment represents the application environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Ledger drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	App     AppConfig
	Discord DiscordConfig
	Ledger  LedgerConfig
	Redis   RedisConfig
	XP      XPConfig
	HTTP    HTTPConfig
	Logging LoggingConfig
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name            string        `env:"APP_NAME" envDefault:"levelington"`
	Environment     Environment   `env:"APP_ENV" envDefault:"development"`
	Debug           bool          `env:"APP_DEBUG" envDefault:"false"`
	Version         string        `env:"APP_VERSION" envDefault:"dev"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// DiscordConfig holds gateway settings.
type DiscordConfig struct {
	Token string `env:"DISCORD_TOKEN"`

	// GuildID scopes command deployment to one guild, which updates
	// instantly. Empty deploys globally.
	GuildID string `env:"DISCORD_GUILD_ID"`

	MaxConcurrentEvents int           `env:"DISCORD_MAX_CONCURRENT_EVENTS" envDefault:"256"`
	EventTimeout        time.Duration `env:"DISCORD_EVENT_TIMEOUT" envDefault:"10s"`
}

// LedgerConfig selects and tunes the XP store.
type LedgerConfig struct {
	Driver      string `env:"LEDGER_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"levelington.db"`
	MaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns    int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// SettingsCacheTTL bounds how stale a cached settings read may be.
	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"10s"`
}

// RedisConfig enables the distributed role-sync lock.
type RedisConfig struct {
	Enabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
	URL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	LockTTL  time.Duration `env:"REDIS_LOCK_TTL" envDefault:"30s"`
	PoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
}

// XPConfig tunes the award pipeline.
type XPConfig struct {
	Cooldown      time.Duration `env:"XP_COOLDOWN" envDefault:"30s"`
	Min           int           `env:"XP_MIN" envDefault:"15"`
	Max           int           `env:"XP_MAX" envDefault:"25"`
	ConfirmWindow time.Duration `env:"DELETE_CONFIRM_WINDOW" envDefault:"60s"`
}

// HTTPConfig configures the ops server.
type HTTPConfig struct {
	Enabled            bool   `env:"HTTP_ENABLED" envDefault:"true"`
	Addr               string `env:"HTTP_ADDR" envDefault:":8080"`
	RateLimitPerMinute int    `env:"HTTP_RATE_LIMIT" envDefault:"60"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file, parses the environment and validates
// the result.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	return Parse()
}

// Parse parses the current environment without touching .env files.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate collects every configuration problem into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.Token == "" {
		errs = append(errs, errors.New("DISCORD_TOKEN is required"))
	}
	if c.Discord.GuildID != "" && !shared.IsSnowflake(c.Discord.GuildID) {
		errs = append(errs, errors.New("DISCORD_GUILD_ID must be a numeric snowflake"))
	}
	if c.Discord.MaxConcurrentEvents < 1 {
		errs = append(errs, errors.New("DISCORD_MAX_CONCURRENT_EVENTS must be positive"))
	}

	switch c.App.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV %q is not one of development, staging, production", c.App.Environment))
	}

	switch c.Ledger.Driver {
	case DriverPostgres:
		if c.Ledger.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverSQLite:
		if c.Ledger.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_DRIVER %q is not one of postgres, sqlite", c.Ledger.Driver))
	}
	if c.Ledger.MinConns > c.Ledger.MaxConns {
		errs = append(errs, errors.New("DB_MIN_CONNS cannot exceed DB_MAX_CONNS"))
	}

	if c.XP.Min < 1 || c.XP.Max < c.XP.Min {
		errs = append(errs, errors.New("XP_MIN must be positive and not above XP_MAX"))
	}
	if c.XP.Cooldown < 0 {
		errs = append(errs, errors.New("XP_COOLDOWN cannot be negative"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q is not one of json, text", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvProduction
}
