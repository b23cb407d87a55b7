package application

import (
	"context"
	"log/slog"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stoik/phishing-detector/internal/domain/detection"
	"github.com/stoik/phishing-detector/internal/ports"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxURLsPerScan = 50
	DefaultURLConcurrency = 8
)

// URLAnalyzer produces one URLAnalysis per distinct link of an email:
// expand it if shortened, then evaluate the domain it really points to
type URLAnalyzer struct {
	resolver    ports.URLResolver
	intel       *VendorAggregator
	maxURLs     int
	concurrency int
	logger      *slog.Logger
}

func NewURLAnalyzer(resolver ports.URLResolver, intel *VendorAggregator, maxURLs, concurrency int, logger *slog.Logger) *URLAnalyzer {
	if maxURLs <= 0 {
		maxURLs = DefaultMaxURLsPerScan
	}
	if concurrency <= 0 {
		concurrency = DefaultURLConcurrency
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &URLAnalyzer{
		resolver:    resolver,
		intel:       intel,
		maxURLs:     maxURLs,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Analyze never fails: resolution and intel problems are carried in each
// analysis' outcomes. Results follow the first occurrence of each URL.
func (a *URLAnalyzer) Analyze(ctx context.Context, urls []string) []domain.URLAnalysis {
	distinct := distinctURLs(urls)
	if len(distinct) > a.maxURLs {
		a.logger.Warn("too many links, analyzing the first ones only", "links", len(distinct), "limit", a.maxURLs)
		distinct = distinct[:a.maxURLs]
	}

	results := make([]domain.URLAnalysis, len(distinct))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, u := range distinct {
		g.Go(func() error {
			results[i] = a.analyzeOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *URLAnalyzer) analyzeOne(ctx context.Context, rawURL string) domain.URLAnalysis {
	res := a.resolver.Resolve(ctx, rawURL)

	// a failed expansion falls back to the shortener's own domain
	host := domain.HostOf(rawURL)
	if res.Outcome.State == domain.OutcomeResolved && res.ExpandedURL != "" {
		if expanded := domain.HostOf(res.ExpandedURL); expanded != "" {
			host = expanded
		}
	}

	analysis := domain.URLAnalysis{
		OriginalURL: rawURL,
		IsShortened: res.IsShortened,
		ExpandedURL: res.ExpandedURL,
		Domain:      host,
		Reputation:  domain.ReputationUnknown,
		Detections:  []domain.Detection{},
		Resolution:  res.Outcome,
		Intel:       domain.Skipped("link has no domain"),
	}
	if host == "" {
		analysis.RiskScore = detection.URLRiskScore(analysis)
		return analysis
	}

	intel := a.intel.Evaluate(ctx, host)
	analysis.Reputation = intel.Reputation
	analysis.IsMalicious = intel.IsMalicious
	analysis.Detections = intel.Detections
	analysis.Intel = intel.Outcome
	analysis.RiskScore = detection.URLRiskScore(analysis)

	if res.Outcome.IsDegraded() {
		a.logger.Info("link expansion failed", "url", rawURL, "reason", res.Outcome.Reason)
	}
	return analysis
}

func distinctURLs(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	distinct := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		distinct = append(distinct, u)
	}
	return distinct
}
