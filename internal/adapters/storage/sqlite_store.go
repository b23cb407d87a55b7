package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS reputation_entries (
			domain TEXT PRIMARY KEY,
			status TEXT NOT NULL CHECK (status IN ('malicious', 'whitelisted')),
			seq INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reputation_status ON reputation_entries(status, seq)`,
		`CREATE TABLE IF NOT EXISTS scan_records (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			sender TEXT NOT NULL,
			subject TEXT NOT NULL,
			score INTEGER NOT NULL,
			risk_band TEXT NOT NULL,
			summary TEXT NOT NULL,
			record TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_records_created ON scan_records(created_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS intel_cache (
			source TEXT NOT NULL,
			domain TEXT NOT NULL,
			detections TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			PRIMARY KEY (source, domain)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_intel_cache_expires ON intel_cache(expires_at)`,
	},
	upsertStatus: `
		INSERT INTO reputation_entries (domain, status, seq) VALUES (?, ?, ?)
		ON CONFLICT (domain) DO UPDATE SET status = excluded.status, seq = excluded.seq
		WHERE reputation_entries.status <> excluded.status
	`,
	upsertIntel: `
		INSERT INTO intel_cache (source, domain, detections, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (source, domain) DO UPDATE SET detections = excluded.detections, expires_at = excluded.expires_at
	`,
	isConflict: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return false
		}
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return true
		}
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
	},
}

// NewSQLiteStore opens (creating if needed) a SQLite database file
func NewSQLiteStore(ctx context.Context, path string, logger *slog.Logger) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL lets history reads run alongside scan writes
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sqlx.ConnectContext(ctx, sqliteDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	store := newSQLStore(db, sqliteDialect, logger)
	if err := store.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
