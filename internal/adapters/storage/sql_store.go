package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stoik/phishing-detector/internal/domain"
)

// dialect carries what differs between the SQL engines. Queries are written
// with '?' placeholders and rebound for the driver.
type dialect struct {
	driver       string
	schema       []string
	upsertStatus string
	upsertIntel  string
	isConflict   func(error) bool
}

// SQLStore implements ports.Storage on top of a relational database
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
	logger  *slog.Logger
	now     func() time.Time
}

func newSQLStore(db *sqlx.DB, d dialect, logger *slog.Logger) *SQLStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLStore{db: db, dialect: d, logger: logger, now: time.Now}
}

// InitSchema creates tables if they don't exist
func (s *SQLStore) InitSchema(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) wrap(op string, err error) error {
	if s.dialect.isConflict(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *SQLStore) GetStatus(ctx context.Context, domainName string) (domain.ReputationStatus, error) {
	var status string
	err := s.db.GetContext(ctx, &status, s.db.Rebind(`SELECT status FROM reputation_entries WHERE domain = ?`), domainName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReputationUnknown, nil
	}
	if err != nil {
		return "", s.wrap("failed to get domain status", err)
	}
	return domain.ReputationStatus(status), nil
}

// PutStatus is one upsert statement: the row changes status in place, and
// only takes a new position when the status actually changes
func (s *SQLStore) PutStatus(ctx context.Context, domainName string, status domain.ReputationStatus) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(s.dialect.upsertStatus), domainName, string(status), nextSeq())
	if err != nil {
		return s.wrap("failed to store domain status", err)
	}
	return nil
}

func (s *SQLStore) DeleteStatus(ctx context.Context, domainName string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM reputation_entries WHERE domain = ?`), domainName)
	if err != nil {
		return s.wrap("failed to delete domain status", err)
	}
	return nil
}

func (s *SQLStore) ListByStatus(ctx context.Context, status domain.ReputationStatus) ([]string, error) {
	domains := make([]string, 0)
	err := s.db.SelectContext(ctx, &domains,
		s.db.Rebind(`SELECT domain FROM reputation_entries WHERE status = ? ORDER BY seq, domain`), string(status))
	if err != nil {
		return nil, s.wrap("failed to list domains", err)
	}
	return domains, nil
}

func (s *SQLStore) Append(ctx context.Context, rec domain.ScanRecord) (domain.ScanRecord, error) {
	stored, data, err := sealRecord(rec, s.now())
	if err != nil {
		return domain.ScanRecord{}, err
	}

	query := `
		INSERT INTO scan_records (id, created_at, sender, subject, score, risk_band, summary, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query),
		stored.ID.String(), formatTimestamp(stored.Timestamp),
		stored.ParsedEmail.Sender, stored.ParsedEmail.Subject,
		stored.AIAnalysis.Score, string(stored.AIAnalysis.RiskBand), stored.AIAnalysis.Summary,
		string(data),
	)
	if err != nil {
		return domain.ScanRecord{}, s.wrap("failed to append scan record", err)
	}
	return stored, nil
}

func (s *SQLStore) Get(ctx context.Context, id uuid.UUID) (domain.ScanRecord, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, s.db.Rebind(`SELECT record FROM scan_records WHERE id = ?`), id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScanRecord{}, fmt.Errorf("scan %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.ScanRecord{}, s.wrap("failed to get scan record", err)
	}
	return domain.DecodeScanRecord(data)
}

type summaryRow struct {
	ID        string `db:"id"`
	CreatedAt string `db:"created_at"`
	Sender    string `db:"sender"`
	Subject   string `db:"subject"`
	Score     int    `db:"score"`
	RiskBand  string `db:"risk_band"`
	Summary   string `db:"summary"`
}

func (s *SQLStore) List(ctx context.Context) ([]domain.ScanSummary, error) {
	var rows []summaryRow
	query := `
		SELECT id, created_at, sender, subject, score, risk_band, summary
		FROM scan_records
		ORDER BY created_at DESC, id DESC
	`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, s.wrap("failed to list scan records", err)
	}

	summaries := make([]domain.ScanSummary, 0, len(rows))
	for _, r := range rows {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid stored scan id %q: %w", r.ID, err)
		}
		ts, err := parseTimestamp(r.CreatedAt)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, domain.ScanSummary{
			ID:        id,
			Timestamp: ts,
			Sender:    r.Sender,
			Subject:   r.Subject,
			Score:     r.Score,
			RiskBand:  domain.RiskBand(r.RiskBand),
			Summary:   r.Summary,
		})
	}
	return summaries, nil
}

func (s *SQLStore) GetDetections(ctx context.Context, source, domainName string) ([]domain.Detection, bool, error) {
	var data []byte
	query := `SELECT detections FROM intel_cache WHERE source = ? AND domain = ? AND expires_at > ?`
	err := s.db.GetContext(ctx, &data, s.db.Rebind(query), source, domainName, s.now().UnixNano())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.wrap("failed to query intel cache", err)
	}

	var detections []domain.Detection
	if err := json.Unmarshal(data, &detections); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached detections: %w", err)
	}
	return detections, true, nil
}

func (s *SQLStore) PutDetections(ctx context.Context, source, domainName string, detections []domain.Detection, expiresAt time.Time) error {
	if detections == nil {
		detections = []domain.Detection{}
	}
	data, err := json.Marshal(detections)
	if err != nil {
		return fmt.Errorf("failed to encode detections: %w", err)
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(s.dialect.upsertIntel), source, domainName, string(data), expiresAt.UnixNano())
	if err != nil {
		return s.wrap("failed to insert intel cache entry", err)
	}
	return nil
}

func (s *SQLStore) CacheStats(ctx context.Context) (domain.CacheStats, error) {
	var rows []struct {
		Source     string `db:"source"`
		Detections []byte `db:"detections"`
	}
	query := `SELECT source, detections FROM intel_cache WHERE expires_at > ?`
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), s.now().UnixNano()); err != nil {
		return domain.CacheStats{}, s.wrap("failed to read intel cache", err)
	}

	stats := domain.CacheStats{BySource: make(map[string]int)}
	for _, r := range rows {
		var detections []domain.Detection
		if err := json.Unmarshal(r.Detections, &detections); err != nil {
			return domain.CacheStats{}, fmt.Errorf("failed to decode cached detections: %w", err)
		}
		stats.Count(r.Source, len(detections))
	}
	return stats, nil
}

func (s *SQLStore) ClearCache(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM intel_cache`)
	if err != nil {
		return 0, s.wrap("failed to clear intel cache", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared entries: %w", err)
	}
	s.logger.Info("intel cache cleared", "entries", n)
	return int(n), nil
}

// Cleanup removes expired intel cache entries
func (s *SQLStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM intel_cache WHERE expires_at <= ?`), s.now().UnixNano())
	if err != nil {
		return s.wrap("failed to clean up expired entries", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		s.logger.Warn("failed to get rows affected during cleanup", "error", err)
	} else {
		s.logger.Debug("cleaned up expired intel cache entries", "expired_count", rowsAffected)
	}
	return nil
}
