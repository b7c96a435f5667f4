/*
Package config loads service settings from the environment.

A .env file in the working directory is loaded first when present; real
environment variables always win over it. Command-line flags are applied
on top by the caller (see cli).

ENVIRONMENT:
  HTTP_PORT         HTTP listen port (8080)
  STORE_DRIVER      sqlite | postgres (sqlite)
  SQLITE_PATH       SQLite database file (videostore.db)
  PG_*              see store/postgres.Config
  LOG_LEVEL         debug | info | warn | error (info)
  LOG_FORMAT        text | json (text)
  AUDIT_ENABLED     run the background invariant auditor (true)
  AUDIT_INTERVAL    time between audit passes (1h)
  CONFLICT_RETRIES  attempts per request on serialization conflict (3)
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/warp/videostore/store/postgres"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrUnknownDriver = errors.New("unknown store driver")
)

type Config struct {
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"`

	Driver     string          `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath string          `env:"SQLITE_PATH" envDefault:"videostore.db"`
	Postgres   postgres.Config // PG_* variables

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	AuditEnabled  bool          `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditInterval time.Duration `env:"AUDIT_INTERVAL" envDefault:"1h"`

	ConflictRetries int           `env:"CONFLICT_RETRIES" envDefault:"3"`
	ConflictBackoff time.Duration `env:"CONFLICT_BACKOFF" envDefault:"20ms"`
}

// Load reads .env files (default ".env", missing files ignored) and then
// parses the environment into a Config.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// Missing files are fine; variables may come from the real environment.
		_ = godotenv.Load(f)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that env tags cannot express.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}
	if c.ConflictRetries < 1 {
		return fmt.Errorf("CONFLICT_RETRIES must be at least 1, got %d", c.ConflictRetries)
	}
	if c.AuditEnabled && c.AuditInterval <= 0 {
		return fmt.Errorf("AUDIT_INTERVAL must be positive, got %s", c.AuditInterval)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
