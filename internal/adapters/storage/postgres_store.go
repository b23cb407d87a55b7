package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var postgresDialect = dialect{
	driver: "postgres",
	schema: []string{
		// ============================================================================
		// REPUTATION_ENTRIES TABLE
		// ============================================================================
		// One row per domain: a domain can never hold two statuses. seq orders
		// domains by when they entered their current status.
		`CREATE TABLE IF NOT EXISTS reputation_entries (
			domain VARCHAR(253) PRIMARY KEY,
			status VARCHAR(16) NOT NULL CHECK (status IN ('malicious', 'whitelisted')),
			seq BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reputation_status ON reputation_entries(status, seq)`,

		// ============================================================================
		// SCAN_RECORDS TABLE
		// ============================================================================
		// Append-only. The row columns back the history listing so browsing
		// never loads the full record; the record itself is the canonical JSON.
		//
		// Production: PARTITION BY RANGE(created_at) once a retention policy exists.
		`CREATE TABLE IF NOT EXISTS scan_records (
			id UUID PRIMARY KEY,
			created_at CHAR(27) NOT NULL,
			sender TEXT NOT NULL,
			subject TEXT NOT NULL,
			score SMALLINT NOT NULL CHECK (score BETWEEN 0 AND 100),
			risk_band VARCHAR(8) NOT NULL,
			summary TEXT NOT NULL,
			record JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_records_created ON scan_records(created_at DESC, id DESC)`,

		// ============================================================================
		// INTEL_CACHE TABLE
		// ============================================================================
		`CREATE TABLE IF NOT EXISTS intel_cache (
			source VARCHAR(64) NOT NULL,
			domain VARCHAR(253) NOT NULL,
			detections JSONB NOT NULL,
			expires_at BIGINT NOT NULL,
			PRIMARY KEY (source, domain)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_intel_cache_expires ON intel_cache(expires_at)`,
	},
	upsertStatus: `
		INSERT INTO reputation_entries (domain, status, seq) VALUES (?, ?, ?)
		ON CONFLICT (domain) DO UPDATE SET status = EXCLUDED.status, seq = EXCLUDED.seq
		WHERE reputation_entries.status <> EXCLUDED.status
	`,
	upsertIntel: `
		INSERT INTO intel_cache (source, domain, detections, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (source, domain) DO UPDATE
		SET detections = EXCLUDED.detections,
		    expires_at = EXCLUDED.expires_at
	`,
	isConflict: func(err error) bool {
		var pe *pq.Error
		if !errors.As(err, &pe) {
			return false
		}
		switch pe.Code {
		case "23505", "40001", "40P01": // unique_violation, serialization_failure, deadlock_detected
			return true
		}
		return false
	},
}

// NewPostgresStore creates a new PostgreSQL storage instance
func NewPostgresStore(ctx context.Context, connStr string, logger *slog.Logger) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, postgresDialect.driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	// In production, should be set based on workload
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := newSQLStore(db, postgresDialect, logger)
	if err := store.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
