package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stoik/phishing-detector/internal/domain/detection"
	"github.com/stoik/phishing-detector/internal/ports"
	"github.com/zeebo/xxh3"
)

// ScanService orchestrates an upload from raw bytes to a stored verdict,
// and exposes history browsing and domain management
type ScanService struct {
	parser     ports.MessageParser
	urls       *URLAnalyzer
	intel      *VendorAggregator
	reputation *ReputationStore
	detector   *detection.Detector
	ledger     ports.ScanLedger
	cache      ports.IntelCache
	logger     *slog.Logger
	now        func() time.Time
}

// NewScanService creates a new scan service with dependency injection
func NewScanService(
	parser ports.MessageParser,
	urls *URLAnalyzer,
	intel *VendorAggregator,
	reputation *ReputationStore,
	detector *detection.Detector,
	ledger ports.ScanLedger,
	cache ports.IntelCache,
	logger *slog.Logger,
) *ScanService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ScanService{
		parser:     parser,
		urls:       urls,
		intel:      intel,
		reputation: reputation,
		detector:   detector,
		ledger:     ledger,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// Scan classifies one raw email and appends the verdict to the history.
// Only a ParseError or a storage failure makes it fail, and in both cases
// nothing is recorded. Detections promoted to the reputation store during
// the scan stay in place either way.
func (s *ScanService) Scan(ctx context.Context, raw []byte) (domain.ScanRecord, error) {
	record, err := s.classify(ctx, raw)
	if err != nil {
		return domain.ScanRecord{}, err
	}

	record, err = s.ledger.Append(ctx, record)
	if err != nil {
		return domain.ScanRecord{}, fmt.Errorf("failed to record scan: %w", err)
	}
	s.logResult(record)
	return record, nil
}

// Analyze classifies one raw email without adding it to the history. The
// returned record has no id. Reputation updates still apply.
func (s *ScanService) Analyze(ctx context.Context, raw []byte) (domain.ScanRecord, error) {
	record, err := s.classify(ctx, raw)
	if err != nil {
		return domain.ScanRecord{}, err
	}
	record.Timestamp = record.Timestamp.UTC().Truncate(time.Microsecond)
	s.logResult(record)
	return record, nil
}

func (s *ScanService) classify(ctx context.Context, raw []byte) (domain.ScanRecord, error) {
	fingerprint := fmt.Sprintf("%016x", xxh3.Hash(raw))

	email, err := s.parser.Parse(raw)
	if err != nil {
		s.logger.Warn("upload rejected", "fingerprint", fingerprint, "error", err)
		return domain.ScanRecord{}, err
	}

	urls := s.urls.Analyze(ctx, email.URLs)
	sender := s.senderIntel(ctx, email)

	analysis := s.detector.Analyze(detection.Input{
		Email:            email,
		URLs:             urls,
		SenderStatus:     sender.Reputation,
		SenderDetections: sender.Detections,
	})

	return domain.ScanRecord{
		Timestamp:   s.now(),
		Fingerprint: fingerprint,
		ParsedEmail: email,
		AIAnalysis:  analysis,
	}, nil
}

func (s *ScanService) logResult(record domain.ScanRecord) {
	email, analysis := record.ParsedEmail, record.AIAnalysis
	s.logger.Info("scan completed",
		"id", record.ID,
		"sender", email.Sender,
		"score", analysis.Score,
		"band", analysis.RiskBand,
		"links", len(analysis.URLAnalysis),
		"indicators", len(analysis.Indicators),
	)
	if analysis.RiskBand == domain.RiskHigh {
		s.logger.Warn("high risk email detected",
			"id", record.ID,
			"subject", email.Subject,
			"sender", email.Sender,
			"summary", analysis.Summary,
		)
	}
}

// senderIntel evaluates the sender's domain like a link domain. Internal
// domains and mailbox providers only get their stored status.
func (s *ScanService) senderIntel(ctx context.Context, email domain.ParsedEmail) domain.IntelResult {
	address := email.SenderAddress
	if address == "" {
		address = email.Sender
	}
	senderDomain, err := domain.NormalizeDomain(address)
	if err != nil {
		s.logger.Debug("sender domain not checked", "sender", email.Sender, "error", err)
		return domain.IntelResult{
			Reputation: domain.ReputationUnknown,
			Detections: []domain.Detection{},
			Outcome:    domain.Skipped("sender has no domain"),
		}
	}

	if s.detector.Context().SkipsSenderLookup(senderDomain) {
		status, err := s.reputation.Lookup(ctx, senderDomain)
		if err != nil {
			s.logger.Error("reputation lookup failed", "domain", senderDomain, "error", err)
			status = domain.ReputationUnknown
		}
		return domain.IntelResult{
			Domain:      senderDomain,
			Reputation:  status,
			IsMalicious: status == domain.ReputationMalicious,
			Detections:  []domain.Detection{},
			Outcome:     domain.Skipped("sender domain is a mailbox provider or internal"),
		}
	}
	return s.intel.Evaluate(ctx, senderDomain)
}

// History lists past scans, newest first
func (s *ScanService) History(ctx context.Context) ([]domain.ScanSummary, error) {
	return s.ledger.List(ctx)
}

// Record returns one past scan or domain.ErrNotFound
func (s *ScanService) Record(ctx context.Context, id uuid.UUID) (domain.ScanRecord, error) {
	return s.ledger.Get(ctx, id)
}

func (s *ScanService) MaliciousDomains(ctx context.Context) ([]string, error) {
	return s.reputation.ListMalicious(ctx)
}

func (s *ScanService) WhitelistedDomains(ctx context.Context) ([]string, error) {
	return s.reputation.ListWhitelisted(ctx)
}

// Domains returns both reputation lists
func (s *ScanService) Domains(ctx context.Context) (domain.DomainLists, error) {
	return s.reputation.Lists(ctx)
}

// WhitelistDomain trusts a domain for future scans and returns the updated
// lists. Past records keep their verdicts.
func (s *ScanService) WhitelistDomain(ctx context.Context, d string) (domain.DomainLists, error) {
	if err := s.reputation.Whitelist(ctx, d); err != nil {
		return domain.DomainLists{}, err
	}
	s.logger.Info("domain whitelisted", "domain", d)
	return s.reputation.Lists(ctx)
}

// RemoveWhitelist returns a domain to Unknown and returns the updated lists
func (s *ScanService) RemoveWhitelist(ctx context.Context, d string) (domain.DomainLists, error) {
	if err := s.reputation.RemoveWhitelist(ctx, d); err != nil {
		return domain.DomainLists{}, err
	}
	s.logger.Info("domain removed from whitelist", "domain", d)
	return s.reputation.Lists(ctx)
}

// SeedWhitelist whitelists configured domains at startup
func (s *ScanService) SeedWhitelist(ctx context.Context, domains []string) error {
	for _, d := range domains {
		if err := s.reputation.Whitelist(ctx, d); err != nil {
			return fmt.Errorf("failed to seed whitelist: %w", err)
		}
	}
	return nil
}

// CacheStats describes the threat-intel answers currently cached
func (s *ScanService) CacheStats(ctx context.Context) (domain.CacheStats, error) {
	return s.cache.CacheStats(ctx)
}

// ClearCache forgets every cached threat-intel answer so the next scans
// query the vendors again
func (s *ScanService) ClearCache(ctx context.Context) (int, error) {
	n, err := s.cache.ClearCache(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("intel cache cleared", "entries", n)
	return n, nil
}
