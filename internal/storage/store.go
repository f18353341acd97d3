package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

//go:embed migrations
var migrationsFS embed.FS

// ErrNotFound is returned by Get when no value is stored under a key.
var ErrNotFound = errors.New("storage: key not found")

// Store is a durable key-value blob store. Set replaces any previous value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Open migrates and connects the store for driver. dsn is a file path for
// sqlite and a connection URL for postgres; it is ignored for memory. The
// mongo driver takes its connection URL from dsn and its database from the
// dsn path, e.g. mongodb://host:27017/anchor.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, dsn)
	case DriverPostgres:
		if err := RunMigrations(dsn); err != nil {
			return nil, err
		}
		return New(ctx, dsn)
	case DriverMongo:
		database, err := mongoDatabase(dsn)
		if err != nil {
			return nil, err
		}
		return OpenMongo(ctx, dsn, database)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// mongoDatabase extracts the database name from a mongodb:// URL path.
func mongoDatabase(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mongo url: %w", err)
	}
	name := strings.Trim(u.Path, "/")
	if name == "" {
		return "", fmt.Errorf("mongo url %q names no database", u.Redacted())
	}
	return name, nil
}
