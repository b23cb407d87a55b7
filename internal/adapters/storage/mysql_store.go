package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

var mysqlDialect = dialect{
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS reputation_entries (
			domain VARCHAR(253) PRIMARY KEY,
			status VARCHAR(16) NOT NULL,
			seq BIGINT NOT NULL,
			INDEX idx_reputation_status (status, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS scan_records (
			id CHAR(36) PRIMARY KEY,
			created_at CHAR(27) NOT NULL,
			sender VARCHAR(512) NOT NULL,
			subject TEXT NOT NULL,
			score INT NOT NULL,
			risk_band VARCHAR(8) NOT NULL,
			summary TEXT NOT NULL,
			record LONGTEXT NOT NULL,
			INDEX idx_scan_records_created (created_at, id)
		)`,
		`CREATE TABLE IF NOT EXISTS intel_cache (
			source VARCHAR(64) NOT NULL,
			domain VARCHAR(253) NOT NULL,
			detections TEXT NOT NULL,
			expires_at BIGINT NOT NULL,
			PRIMARY KEY (source, domain),
			INDEX idx_intel_cache_expires (expires_at)
		)`,
	},
	// seq is assigned before status so it still compares against the old value
	upsertStatus: `
		INSERT INTO reputation_entries (domain, status, seq) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			seq = IF(status = VALUES(status), seq, VALUES(seq)),
			status = VALUES(status)
	`,
	upsertIntel: `
		INSERT INTO intel_cache (source, domain, detections, expires_at) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			detections = VALUES(detections),
			expires_at = VALUES(expires_at)
	`,
	isConflict: func(err error) bool {
		var me *mysql.MySQLError
		if !errors.As(err, &me) {
			return false
		}
		switch me.Number {
		case 1062, 1205, 1213: // duplicate key, lock wait timeout, deadlock
			return true
		}
		return false
	},
}

// NewMySQLStore connects to MySQL using a go-sql-driver DSN
func NewMySQLStore(ctx context.Context, dsn string, logger *slog.Logger) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true

	db, err := sqlx.ConnectContext(ctx, mysqlDialect.driver, cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := newSQLStore(db, mysqlDialect, logger)
	if err := store.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
