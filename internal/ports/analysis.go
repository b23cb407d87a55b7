package ports

import (
	"context"

	"github.com/stoik/phishing-detector/internal/domain"
)

// MessageParser turns a raw RFC 5322 payload into a ParsedEmail.
// Undecodable payloads fail with an error matching domain.ErrParse.
type MessageParser interface {
	Parse(raw []byte) (domain.ParsedEmail, error)
}

// URLResolver expands shortened links. Resolve never fails: network problems
// are reported through Resolution.Outcome.
type URLResolver interface {
	Resolve(ctx context.Context, rawURL string) domain.Resolution
}

// IntelSource is one external threat-intel provider
type IntelSource interface {
	// Name identifies the source in logs
	Name() string

	// Lookup returns the (vendor, verdict) pairs the source holds for a domain
	Lookup(ctx context.Context, domainName string) ([]domain.Detection, error)

	// Classify applies the source's own rule to decide whether its verdicts
	// amount to "malicious"
	Classify(detections []domain.Detection) bool
}
