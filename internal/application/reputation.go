package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stoik/phishing-detector/internal/ports"
	"github.com/zeebo/xxh3"
)

const lockStripes = 64

// ReputationStore is the single source of truth for domain classification.
//
// Writes to one domain are serialized by a striped lock so a concurrent
// MarkMalicious and Whitelist cannot interleave their read-then-write; reads
// go straight to the repository and always see a committed row.
type ReputationStore struct {
	repo  ports.ReputationRepository
	locks [lockStripes]sync.Mutex
}

func NewReputationStore(repo ports.ReputationRepository) *ReputationStore {
	return &ReputationStore{repo: repo}
}

func (s *ReputationStore) lock(domainName string) func() {
	m := &s.locks[xxh3.HashString(domainName)%lockStripes]
	m.Lock()
	return m.Unlock
}

// retry runs a write once more when it lost a race against another writer
func retry(op func() error) error {
	err := op()
	if errors.Is(err, domain.ErrStoreConflict) {
		err = op()
	}
	return err
}

// Lookup returns the current status of a domain
func (s *ReputationStore) Lookup(ctx context.Context, raw string) (domain.ReputationStatus, error) {
	d, err := domain.NormalizeDomain(raw)
	if err != nil {
		return "", err
	}
	return s.repo.GetStatus(ctx, d)
}

// MarkMalicious records a detection. It does nothing for whitelisted
// domains and reports whether the status changed.
func (s *ReputationStore) MarkMalicious(ctx context.Context, raw string) (bool, error) {
	d, err := domain.NormalizeDomain(raw)
	if err != nil {
		return false, err
	}
	defer s.lock(d)()

	changed := false
	err = retry(func() error {
		current, err := s.repo.GetStatus(ctx, d)
		if err != nil {
			return err
		}
		if current != domain.ReputationUnknown {
			return nil
		}
		if err := s.repo.PutStatus(ctx, d, domain.ReputationMalicious); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark %s malicious: %w", d, err)
	}
	return changed, nil
}

// Whitelist makes the domain trusted, replacing a Malicious status in the
// same write
func (s *ReputationStore) Whitelist(ctx context.Context, raw string) error {
	d, err := domain.NormalizeDomain(raw)
	if err != nil {
		return err
	}
	defer s.lock(d)()

	err = retry(func() error {
		return s.repo.PutStatus(ctx, d, domain.ReputationWhitelisted)
	})
	if err != nil {
		return fmt.Errorf("failed to whitelist %s: %w", d, err)
	}
	return nil
}

// RemoveWhitelist returns a whitelisted domain to Unknown. A previous
// Malicious status is not restored; the domain has to be detected again.
func (s *ReputationStore) RemoveWhitelist(ctx context.Context, raw string) error {
	d, err := domain.NormalizeDomain(raw)
	if err != nil {
		return err
	}
	defer s.lock(d)()

	err = retry(func() error {
		current, err := s.repo.GetStatus(ctx, d)
		if err != nil {
			return err
		}
		if current != domain.ReputationWhitelisted {
			return nil
		}
		return s.repo.DeleteStatus(ctx, d)
	})
	if err != nil {
		return fmt.Errorf("failed to remove %s from whitelist: %w", d, err)
	}
	return nil
}

func (s *ReputationStore) ListMalicious(ctx context.Context) ([]string, error) {
	return s.repo.ListByStatus(ctx, domain.ReputationMalicious)
}

func (s *ReputationStore) ListWhitelisted(ctx context.Context) ([]string, error) {
	return s.repo.ListByStatus(ctx, domain.ReputationWhitelisted)
}

// Lists returns both lists
func (s *ReputationStore) Lists(ctx context.Context) (domain.DomainLists, error) {
	malicious, err := s.ListMalicious(ctx)
	if err != nil {
		return domain.DomainLists{}, fmt.Errorf("failed to list malicious domains: %w", err)
	}
	whitelisted, err := s.ListWhitelisted(ctx)
	if err != nil {
		return domain.DomainLists{}, fmt.Errorf("failed to list whitelisted domains: %w", err)
	}
	return domain.DomainLists{Malicious: malicious, Whitelisted: whitelisted}, nil
}
