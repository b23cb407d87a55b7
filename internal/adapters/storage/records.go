package storage

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stoik/phishing-detector/internal/domain"
)

// timestampLayout is fixed width so stored timestamps sort as text
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// sealRecord gives a record its ledger identity and returns it exactly as it
// will be read back, along with its canonical encoding
func sealRecord(rec domain.ScanRecord, now time.Time) (domain.ScanRecord, []byte, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.ScanRecord{}, nil, fmt.Errorf("failed to generate scan id: %w", err)
	}
	rec.ID = id
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Microsecond)

	data, err := domain.EncodeScanRecord(rec)
	if err != nil {
		return domain.ScanRecord{}, nil, err
	}
	stored, err := domain.DecodeScanRecord(data)
	if err != nil {
		return domain.ScanRecord{}, nil, err
	}
	return stored, data, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

var lastSeq atomic.Int64

// nextSeq orders entries into a reputation status. It is time based so
// several processes sharing a database still agree on the order, and
// strictly increasing within one process.
func nextSeq() int64 {
	for {
		prev := lastSeq.Load()
		next := max(time.Now().UnixNano(), prev+1)
		if lastSeq.CompareAndSwap(prev, next) {
			return next
		}
	}
}
