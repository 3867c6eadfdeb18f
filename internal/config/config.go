// Package config loads process configuration from SPRINTLEDGER_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/sprintledger/internal/store"
)

// Prefix is prepended to every variable name.
const Prefix = "SPRINTLEDGER_"

// DriverPostgres selects the pgx-backed store.
const DriverPostgres = "postgres"

// Config is the process configuration.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"prod"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8001"`

	// DBDriver is one of store.DriverCGO, store.DriverPureGo, or DriverPostgres.
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	// DBDSN is a file path for the SQLite drivers and a connection string
	// for postgres.
	DBDSN string `env:"DB_DSN" envDefault:"sprintledger.db"`

	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	// ReconcileCron schedules the accepted-points sweep. Empty disables it.
	ReconcileCron string `env:"RECONCILE_CRON" envDefault:"@every 1h"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	OTELEndpoint string `env:"OTEL_ENDPOINT"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

// Dev reports whether the process runs in development mode.
func (c Config) Dev() bool {
	return c.AppEnv == "dev"
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: Prefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints the tags cannot express.
func (c Config) Validate() error {
	switch c.DBDriver {
	case store.DriverCGO, store.DriverPureGo, DriverPostgres:
	default:
		return fmt.Errorf("invalid %sDB_DRIVER %q: must be %s, %s or %s",
			Prefix, c.DBDriver, store.DriverCGO, store.DriverPureGo, DriverPostgres)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("%sDB_DSN must not be empty", Prefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%sREQUEST_TIMEOUT must be positive, got %s", Prefix, c.RequestTimeout)
	}
	return nil
}
