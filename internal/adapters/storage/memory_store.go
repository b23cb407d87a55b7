package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stoik/phishing-detector/internal/domain"
)

type statusEntry struct {
	status domain.ReputationStatus
	seq    uint64
}

type intelEntry struct {
	detections []domain.Detection
	expiresAt  time.Time
}

// MemoryStore implements ports.Storage in process memory. Records are kept
// in their canonical JSON form so reads go through the same decoding as the
// SQL backends.
type MemoryStore struct {
	mu       sync.RWMutex
	statuses map[string]statusEntry
	seq      uint64
	records  map[uuid.UUID][]byte
	rows     []domain.ScanSummary
	intel    map[string]intelEntry
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses: make(map[string]statusEntry),
		records:  make(map[uuid.UUID][]byte),
		intel:    make(map[string]intelEntry),
		now:      time.Now,
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) GetStatus(_ context.Context, domainName string) (domain.ReputationStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.statuses[domainName]; ok {
		return e.status, nil
	}
	return domain.ReputationUnknown, nil
}

func (s *MemoryStore) PutStatus(_ context.Context, domainName string, status domain.ReputationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.statuses[domainName]; ok && e.status == status {
		return nil
	}
	s.seq++
	s.statuses[domainName] = statusEntry{status: status, seq: s.seq}
	return nil
}

func (s *MemoryStore) DeleteStatus(_ context.Context, domainName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, domainName)
	return nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status domain.ReputationStatus) ([]string, error) {
	s.mu.RLock()
	type ranked struct {
		name string
		seq  uint64
	}
	var matches []ranked
	for name, e := range s.statuses {
		if e.status == status {
			matches = append(matches, ranked{name, e.seq})
		}
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })
	domains := make([]string, 0, len(matches))
	for _, m := range matches {
		domains = append(domains, m.name)
	}
	return domains, nil
}

func (s *MemoryStore) Append(_ context.Context, rec domain.ScanRecord) (domain.ScanRecord, error) {
	stored, data, err := sealRecord(rec, s.now())
	if err != nil {
		return domain.ScanRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[stored.ID]; exists {
		return domain.ScanRecord{}, fmt.Errorf("scan %s: %w", stored.ID, domain.ErrStoreConflict)
	}
	s.records[stored.ID] = data
	s.rows = append(s.rows, stored.Summary())
	return stored, nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (domain.ScanRecord, error) {
	s.mu.RLock()
	data, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return domain.ScanRecord{}, fmt.Errorf("scan %s: %w", id, domain.ErrNotFound)
	}
	return domain.DecodeScanRecord(data)
}

func (s *MemoryStore) List(_ context.Context) ([]domain.ScanSummary, error) {
	s.mu.RLock()
	rows := append([]domain.ScanSummary(nil), s.rows...)
	s.mu.RUnlock()

	sortNewestFirst(rows)
	return rows, nil
}

func (s *MemoryStore) GetDetections(_ context.Context, source, domainName string) ([]domain.Detection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.intel[source+"\x00"+domainName]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return append([]domain.Detection(nil), e.detections...), true, nil
}

func (s *MemoryStore) PutDetections(_ context.Context, source, domainName string, detections []domain.Detection, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intel[source+"\x00"+domainName] = intelEntry{
		detections: append([]domain.Detection(nil), detections...),
		expiresAt:  expiresAt,
	}
	return nil
}

func (s *MemoryStore) CacheStats(_ context.Context) (domain.CacheStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := domain.CacheStats{BySource: make(map[string]int)}
	now := s.now()
	for key, e := range s.intel {
		if !now.Before(e.expiresAt) {
			continue
		}
		source, _, _ := strings.Cut(key, "\x00")
		stats.Count(source, len(e.detections))
	}
	return stats, nil
}

func (s *MemoryStore) ClearCache(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.intel)
	s.intel = make(map[string]intelEntry)
	return n, nil
}

// sortNewestFirst orders by timestamp descending; UUIDv7 ids break ties
// in creation order
func sortNewestFirst(rows []domain.ScanSummary) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Timestamp.Equal(rows[j].Timestamp) {
			return rows[i].Timestamp.After(rows[j].Timestamp)
		}
		return rows[i].ID.String() > rows[j].ID.String()
	})
}
