package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stoik/phishing-detector/internal/domain"
)

// ReputationRepository persists one status per domain
//
// PutStatus is a single-row upsert: a domain moves between statuses without
// ever being observable under two of them. Entering a new status moves the
// domain to the end of that status' list; writing the status it already has
// keeps its position.
type ReputationRepository interface {
	// GetStatus returns ReputationUnknown for domains without an entry
	GetStatus(ctx context.Context, domainName string) (domain.ReputationStatus, error)
	PutStatus(ctx context.Context, domainName string, status domain.ReputationStatus) error
	DeleteStatus(ctx context.Context, domainName string) error
	// ListByStatus returns domains in the order they entered the status
	ListByStatus(ctx context.Context, status domain.ReputationStatus) ([]string, error)
}

// ScanLedger is the append-only history of scans
type ScanLedger interface {
	// Append assigns the record a fresh id and persists it. The returned
	// record is exactly what Get will return.
	Append(ctx context.Context, record domain.ScanRecord) (domain.ScanRecord, error)

	// Get fails with domain.ErrNotFound for unknown ids
	Get(ctx context.Context, id uuid.UUID) (domain.ScanRecord, error)

	// List returns summaries newest first
	List(ctx context.Context) ([]domain.ScanSummary, error)
}

// IntelCache keeps threat-intel answers per source and domain so repeated
// scans do not re-query rate-limited vendors
type IntelCache interface {
	// GetDetections reports ok=false on a miss or an expired entry
	GetDetections(ctx context.Context, source, domainName string) (detections []domain.Detection, ok bool, err error)
	PutDetections(ctx context.Context, source, domainName string, detections []domain.Detection, expiresAt time.Time) error

	// CacheStats counts the entries that have not expired
	CacheStats(ctx context.Context) (domain.CacheStats, error)
	// ClearCache drops every entry and reports how many there were
	ClearCache(ctx context.Context) (int, error)
}

// Storage is a backend providing every repository
type Storage interface {
	ReputationRepository
	ScanLedger
	IntelCache

	// Lifecycle
	Close() error
}
