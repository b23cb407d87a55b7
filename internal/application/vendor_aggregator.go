package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stoik/phishing-detector/internal/ports"
	"golang.org/x/sync/singleflight"
)

const DefaultSourceTimeout = 10 * time.Second

// VendorAggregator asks every configured threat-intel source about a domain
// and folds their answers into one result. Sources that fail are left out;
// the stored reputation is the fallback when none answers.
type VendorAggregator struct {
	sources       []ports.IntelSource
	reputation    *ReputationStore
	sourceTimeout time.Duration
	logger        *slog.Logger

	// concurrent scans asking about the same domain share one lookup
	flight singleflight.Group
}

func NewVendorAggregator(sources []ports.IntelSource, reputation *ReputationStore, sourceTimeout time.Duration, logger *slog.Logger) *VendorAggregator {
	if sourceTimeout <= 0 {
		sourceTimeout = DefaultSourceTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VendorAggregator{
		sources:       sources,
		reputation:    reputation,
		sourceTimeout: sourceTimeout,
		logger:        logger,
	}
}

type sourceAnswer struct {
	index      int
	name       string
	detections []domain.Detection
	malicious  bool
	err        error
}

// Evaluate returns the intel verdict for a normalized domain. A caller that
// gives up early gets a degraded answer of its own; the shared lookup keeps
// running for the others, each source bounded by its timeout.
func (a *VendorAggregator) Evaluate(ctx context.Context, domainName string) domain.IntelResult {
	ch := a.flight.DoChan(domainName, func() (any, error) {
		return a.evaluate(context.WithoutCancel(ctx), domainName), nil
	})

	select {
	case res := <-ch:
		result := res.Val.(domain.IntelResult)
		// callers own their copy
		result.Detections = append([]domain.Detection{}, result.Detections...)
		return result
	case <-ctx.Done():
		return a.abandoned(context.WithoutCancel(ctx), domainName, ctx.Err())
	}
}

// abandoned answers from the stored reputation alone
func (a *VendorAggregator) abandoned(ctx context.Context, domainName string, cause error) domain.IntelResult {
	result := domain.IntelResult{
		Domain:     domainName,
		Reputation: a.status(ctx, domainName),
		Detections: []domain.Detection{},
	}
	if result.Reputation == domain.ReputationWhitelisted {
		result.Outcome = domain.Skipped("domain is whitelisted")
		return result
	}
	result.IsMalicious = result.Reputation == domain.ReputationMalicious
	result.Outcome = domain.Degraded(fmt.Sprintf("intel lookup abandoned: %v", cause))
	return result
}

func (a *VendorAggregator) evaluate(ctx context.Context, domainName string) domain.IntelResult {
	result := domain.IntelResult{
		Domain:     domainName,
		Reputation: a.status(ctx, domainName),
		Detections: []domain.Detection{},
	}

	if result.Reputation == domain.ReputationWhitelisted {
		result.Outcome = domain.Skipped("domain is whitelisted")
		return result
	}
	if len(a.sources) == 0 {
		result.IsMalicious = result.Reputation == domain.ReputationMalicious
		result.Outcome = domain.Skipped("no intel source configured")
		return result
	}

	answers := a.query(ctx, domainName)

	var failures []string
	for _, ans := range answers {
		if ans.err != nil {
			a.logger.Warn("intel source failed", "source", ans.name, "domain", domainName, "error", ans.err)
			failures = append(failures, fmt.Sprintf("%s: %v", ans.name, ans.err))
			continue
		}
		result.Detections = append(result.Detections, ans.detections...)
		if ans.malicious {
			result.FlaggingSources++
		}
	}

	switch {
	case len(failures) == len(answers):
		result.Outcome = domain.Degraded("all intel sources failed: " + strings.Join(failures, "; "))
	case len(failures) > 0:
		result.Outcome = domain.Degraded("partial intel: " + strings.Join(failures, "; "))
	default:
		result.Outcome = domain.Resolved()
	}

	if result.FlaggingSources > 0 {
		changed, err := a.reputation.MarkMalicious(ctx, domainName)
		if err != nil {
			a.logger.Error("failed to promote detection", "domain", domainName, "error", err)
		} else if changed {
			a.logger.Info("domain marked malicious", "domain", domainName, "sources", result.FlaggingSources)
		}
		result.Reputation = a.status(ctx, domainName)
	}

	// a stored Malicious status is sticky: a quiet or failing vendor does
	// not clear it
	result.IsMalicious = result.FlaggingSources > 0 || result.Reputation == domain.ReputationMalicious
	return result
}

func (a *VendorAggregator) status(ctx context.Context, domainName string) domain.ReputationStatus {
	status, err := a.reputation.Lookup(ctx, domainName)
	if err != nil {
		a.logger.Error("reputation lookup failed", "domain", domainName, "error", err)
		return domain.ReputationUnknown
	}
	return status
}

// query fans out to every source with its own deadline. Answers come back
// in source order.
func (a *VendorAggregator) query(ctx context.Context, domainName string) []sourceAnswer {
	p := pool.NewWithResults[sourceAnswer]()
	for i, src := range a.sources {
		p.Go(func() sourceAnswer {
			sctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
			defer cancel()

			ans := sourceAnswer{index: i, name: src.Name()}
			ans.detections, ans.err = src.Lookup(sctx, domainName)
			if ans.err == nil {
				ans.malicious = src.Classify(ans.detections)
			}
			return ans
		})
	}

	answers := p.Wait()
	sort.Slice(answers, func(i, j int) bool { return answers[i].index < answers[j].index })
	return answers
}
