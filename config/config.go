// Package config loads service configuration from environment variables
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverDynamo   = "dynamo"
)

// Config is the full service configuration
type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
	CORSOrigins    []string      `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	Store    StoreConfig
	Notify   NotifyConfig
	Realtime RealtimeConfig
}

// StoreConfig selects and configures the durable store
type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"mealmatch.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	MaxConns    int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	DynamoEndpoint string `env:"DYNAMO_ENDPOINT"`
	TablePrefix    string `env:"DYNAMO_TABLE_PREFIX"`
}

// NotifyConfig configures the push gateway
type NotifyConfig struct {
	GatewayURL  string        `env:"NOTIFY_GATEWAY_URL" envDefault:"https://exp.host/--/api/v2/push/send"`
	AccessToken string        `env:"NOTIFY_ACCESS_TOKEN"`
	Timeout     time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"5s"`
	Disabled    bool          `env:"NOTIFY_DISABLED" envDefault:"false"`
}

// RealtimeConfig configures the in-process broadcast hub
type RealtimeConfig struct {
	Buffer int `env:"REALTIME_BUFFER" envDefault:"16"`
}

// Load parses the process environment
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given environment map instead of the process one
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case DriverMemory, DriverSQLite, DriverDynamo:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for store driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Notify.Timeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.Notify.Timeout)
	}
	if c.Realtime.Buffer < 1 {
		return fmt.Errorf("REALTIME_BUFFER must be at least 1, got %d", c.Realtime.Buffer)
	}
	return nil
}

// Addr returns the listen address for the HTTP server
func (c Config) Addr() string {
	return ":" + c.Port
}
