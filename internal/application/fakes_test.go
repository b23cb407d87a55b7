package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stoik/phishing-detector/internal/ports"
)

// fakeResolver expands links from a fixed table
type fakeResolver struct {
	expansions map[string]string
	failing    map[string]string
}

func (r *fakeResolver) Resolve(_ context.Context, u string) domain.Resolution {
	res := domain.Resolution{OriginalURL: u}
	if reason, ok := r.failing[u]; ok {
		res.IsShortened = true
		res.Outcome = domain.Degraded(reason)
		return res
	}
	if target, ok := r.expansions[u]; ok {
		res.IsShortened = true
		res.ExpandedURL = target
		res.Outcome = domain.Resolved()
		return res
	}
	res.Outcome = domain.Skipped("not a shortened link")
	return res
}

// fakeSource answers from a table; verdicts containing "phishing" are
// malicious
type fakeSource struct {
	name    string
	answers map[string][]domain.Detection
	err     error
	// block makes Lookup wait for its context to end
	block bool
	// gate, when set, holds Lookup until it is closed
	gate  chan struct{}
	calls atomic.Int64
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Classify(detections []domain.Detection) bool {
	for _, d := range detections {
		if strings.Contains(strings.ToLower(d.Verdict), "phishing") {
			return true
		}
	}
	return false
}

func (s *fakeSource) Lookup(ctx context.Context, domainName string) ([]domain.Detection, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.answers[domainName], nil
}

// conflictingRepo fails the first PutStatus with a store conflict
type conflictingRepo struct {
	ports.ReputationRepository
	mu       sync.Mutex
	conflict bool
	puts     int
}

func (r *conflictingRepo) PutStatus(ctx context.Context, d string, status domain.ReputationStatus) error {
	r.mu.Lock()
	r.puts++
	fail := r.conflict
	r.conflict = false
	r.mu.Unlock()
	if fail {
		return errors.Join(errors.New("UNIQUE constraint failed"), domain.ErrStoreConflict)
	}
	return r.ReputationRepository.PutStatus(ctx, d, status)
}
