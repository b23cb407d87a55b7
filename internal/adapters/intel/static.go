package intel

import (
	"context"
	"strings"

	"github.com/stoik/phishing-detector/internal/domain"
)

// StaticEntry maps a domain substring to canned vendor verdicts
type StaticEntry struct {
	Pattern    string
	Detections []domain.Detection
}

// DefaultStaticEntries is the offline demo table used when no live intel
// source is configured
var DefaultStaticEntries = []StaticEntry{
	{Pattern: "bit.ly", Detections: []domain.Detection{det("Kaspersky", "Suspicious"), det("McAfee", "Phishing")}},
	{Pattern: "tinyurl.com", Detections: []domain.Detection{det("Norton", "Suspicious")}},
	{Pattern: "bricklestrks.com", Detections: []domain.Detection{det("Kaspersky", "Phishing"), det("BitDefender", "Malicious"), det("Avast", "Fraud")}},
	{Pattern: "flagotechs.com", Detections: []domain.Detection{det("Norton", "Spam"), det("ESET", "Phishing")}},
	{Pattern: "fake-bank", Detections: []domain.Detection{det("Kaspersky", "Phishing"), det("McAfee", "Fraud"), det("Norton", "Malicious")}},
	{Pattern: "phishing", Detections: []domain.Detection{det("BitDefender", "Phishing"), det("Avast", "Malicious")}},
	{Pattern: "malware", Detections: []domain.Detection{det("Kaspersky", "Malware"), det("Norton", "Trojan")}},
}

func det(vendor, verdict string) domain.Detection {
	return domain.Detection{Vendor: vendor, Verdict: verdict}
}

// StaticSource answers from a fixed table; the first matching pattern wins
type StaticSource struct {
	entries []StaticEntry
	rule    VerdictRule
}

func NewStaticSource(entries []StaticEntry) *StaticSource {
	if entries == nil {
		entries = DefaultStaticEntries
	}
	return &StaticSource{entries: entries, rule: StaticRule}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Classify(detections []domain.Detection) bool {
	return s.rule.Classify(detections)
}

func (s *StaticSource) Lookup(ctx context.Context, domainName string) ([]domain.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, e := range s.entries {
		if strings.Contains(domainName, e.Pattern) {
			return append([]domain.Detection(nil), e.Detections...), nil
		}
	}
	return nil, nil
}
