// Package config loads runtime configuration from the environment. A .env
// file in the working directory is honoured when present; real environment
// variables always win over it.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the core application settings. Each field maps to one
// environment variable through its envconfig tag.
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`
	Port string `envconfig:"APP_PORT" default:"8080"`

	DBUser string `envconfig:"DB_USER" required:"true"`
	DBPass string `envconfig:"DB_PASS"`
	DBHost string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME" required:"true"`

	JWTSecret      string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin   int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"15"`
	RefreshTTLDays int    `envconfig:"REFRESH_TOKEN_TTL_DAYS" default:"7"`
	BcryptCost     int    `envconfig:"BCRYPT_COST" default:"12"`

	// Timezone decides which calendar day an invoice belongs to.
	Timezone string `envconfig:"LAB_TIMEZONE" default:"UTC"`

	ExportDir           string `envconfig:"EXPORT_DIR" default:"exports"`
	ExportRetentionDays int    `envconfig:"EXPORT_RETENTION_DAYS" default:"7"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
	BodyLimit   string   `envconfig:"BODY_LIMIT" default:"2M"`
}

// Load reads .env (if any) and decodes the environment into a Config.
// Missing required variables and out-of-range values are returned as errors
// so the caller decides how to exit.
func Load() (Config, error) {
	loadDotenv()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	if c.AccessTTLMin <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL_MIN must be positive"))
	}
	if c.RefreshTTLDays <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL_DAYS must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.ExportRetentionDays <= 0 {
		errs = append(errs, errors.New("EXPORT_RETENTION_DAYS must be positive"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("LAB_TIMEZONE: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the lab's time zone. Load has already validated it, so
// the UTC fallback only matters for hand-built configs.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AccessTTL and RefreshTTL expose the token lifetimes as durations.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "development" }

func loadDotenv() {
	// a missing .env is the normal case in containers
	_ = godotenv.Load()
}
