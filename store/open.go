package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbcarlson3/meal-match/config"
)

// Migrator is implemented by backends with a schema to apply
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Open builds the backend selected by cfg.Driver. SQLite applies its schema
// on open; the others need Migrate.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverMemory:
		return NewMemory(), nil
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.DriverPostgres:
		return OpenPostgres(ctx, PostgresConfig{URL: cfg.DatabaseURL, MaxConns: cfg.MaxConns})
	case config.DriverDynamo:
		client, err := NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		return NewDynamo(client, cfg.TablePrefix), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// Migrate applies st's schema when it has one
func Migrate(ctx context.Context, st Store) error {
	if m, ok := st.(Migrator); ok {
		return m.Migrate(ctx)
	}
	return nil
}
