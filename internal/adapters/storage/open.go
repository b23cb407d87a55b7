package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stoik/phishing-detector/internal/ports"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
)

// Options selects and configures a backend
type Options struct {
	Backend string
	// Path is the SQLite database file
	Path string
	// URL is the MySQL DSN or PostgreSQL connection string
	URL    string
	Logger *slog.Logger
}

// Open returns the configured backend, with its schema in place and expired
// intel cache entries removed
func Open(ctx context.Context, opts Options) (ports.Storage, error) {
	var (
		store *SQLStore
		err   error
	)
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		store, err = NewSQLiteStore(ctx, opts.Path, opts.Logger)
	case BackendMySQL:
		store, err = NewMySQLStore(ctx, opts.URL, opts.Logger)
	case BackendPostgres:
		store, err = NewPostgresStore(ctx, opts.URL, opts.Logger)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Cleanup(ctx); err != nil {
		store.logger.Warn("intel cache cleanup failed", "error", err)
	}
	return store, nil
}
