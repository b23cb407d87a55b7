package detection

import (
	"slices"

	"github.com/stoik/phishing-detector/internal/domain"
)

// Input is everything the scoring engine looks at for one email
type Input struct {
	Email domain.ParsedEmail

	// URLs holds one analysis per distinct URL, in first-occurrence order
	URLs []domain.URLAnalysis

	// SenderStatus is the reputation of the sender's domain at scan time
	SenderStatus domain.ReputationStatus

	// SenderDetections are the vendor detections for the sender's domain,
	// empty when it was not looked up
	SenderDetections []domain.Detection
}

// Signal is one scoring contribution. Indicator is the human-readable line
// reported to the operator.
type Signal struct {
	Type      string
	Points    int
	Indicator string
}

// DetectionStrategy defines the interface that all phishing detection strategies must implement
//
// Strategies are pure: the same Input and context always produce the same signals.
type DetectionStrategy interface {
	// Detect analyzes an email and returns the signals it raises, nil if none
	Detect(in Input, context *DetectionContext) []Signal

	// Name returns the human-readable name of this detection strategy
	Name() string
}

// DetectionContext provides shared context needed by multiple detection strategies
type DetectionContext struct {
	// InternalDomains are the organization's own domains (e.g., "company.com")
	// Used to distinguish internal vs external senders
	InternalDomains []string

	// TrustedDomains are legitimate external domains (e.g., "microsoft.com", "paypal.com")
	// Used for typosquatting and brand impersonation detection
	TrustedDomains []string

	FreeMailDomains   []string
	DisposableDomains []string
}

// DefaultFreeMailDomains are consumer mailbox providers
var DefaultFreeMailDomains = []string{
	"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com",
	"icloud.com", "proton.me", "protonmail.com", "gmx.com", "mail.com",
	"live.com", "msn.com", "yandex.com", "zoho.com", "fastmail.com", "tutanota.com",
}

// DefaultDisposableDomains are matched as substrings of the sender domain
var DefaultDisposableDomains = []string{
	"tempmail", "guerrillamail", "10minutemail", "mailinator", "yopmail", "trashmail",
}

// NewDetectionContext creates a new detection context with the provided configuration
func NewDetectionContext(internalDomains, trustedDomains []string) *DetectionContext {
	return &DetectionContext{
		InternalDomains:   internalDomains,
		TrustedDomains:    trustedDomains,
		FreeMailDomains:   DefaultFreeMailDomains,
		DisposableDomains: DefaultDisposableDomains,
	}
}

// SkipsSenderLookup reports whether a sender domain is not worth asking
// threat intel about: the organization's own domains and mailbox providers
// whose reputation says nothing about one sender.
func (c *DetectionContext) SkipsSenderLookup(senderDomain string) bool {
	return isInternalDomain(senderDomain, c.InternalDomains) || slices.Contains(c.FreeMailDomains, senderDomain)
}

func single(typ string, points int, indicator string) []Signal {
	return []Signal{{Type: typ, Points: points, Indicator: indicator}}
}
