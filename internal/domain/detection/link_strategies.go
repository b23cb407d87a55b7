package detection

import (
	"fmt"
	"strings"

	"github.com/stoik/phishing-detector/internal/domain"
)

const (
	maliciousLinkPoints      = 55
	extraMaliciousPoints     = 10
	maxExtraMaliciousPoints  = 20
	shortenedLinkPoints      = 15
	repeatedLinkPoints       = 5
	repeatedLinkThreshold    = 3
	linkDomainMismatchPoints = 10
)

// MaliciousLinkStrategy is the dominant signal: a link whose destination is
// known malicious.
type MaliciousLinkStrategy struct{}

func NewMaliciousLinkStrategy() *MaliciousLinkStrategy {
	return &MaliciousLinkStrategy{}
}

func (s *MaliciousLinkStrategy) Name() string {
	return "Malicious Links"
}

func (s *MaliciousLinkStrategy) Detect(in Input, context *DetectionContext) []Signal {
	var domains []string
	seen := make(map[string]bool)
	for _, u := range in.URLs {
		if !u.IsMalicious || seen[u.Domain] {
			continue
		}
		seen[u.Domain] = true
		domains = append(domains, u.Domain)
	}
	if len(domains) == 0 {
		return nil
	}

	extra := min((len(domains)-1)*extraMaliciousPoints, maxExtraMaliciousPoints)
	return single(
		"MALICIOUS_LINK",
		maliciousLinkPoints+extra,
		fmt.Sprintf("Links to known malicious domain(s): %s", strings.Join(domains, ", ")),
	)
}

// ShortenedLinkStrategy flags links hidden behind a URL shortener
type ShortenedLinkStrategy struct{}

func NewShortenedLinkStrategy() *ShortenedLinkStrategy {
	return &ShortenedLinkStrategy{}
}

func (s *ShortenedLinkStrategy) Name() string {
	return "Shortened Links"
}

func (s *ShortenedLinkStrategy) Detect(in Input, context *DetectionContext) []Signal {
	for _, u := range in.URLs {
		if !u.IsShortened {
			continue
		}
		target := u.ExpandedURL
		if target == "" {
			target = "unresolved destination"
		}
		return single(
			"SHORTENED_LINK",
			shortenedLinkPoints,
			fmt.Sprintf("Shortened URL detected: %s -> %s", u.OriginalURL, target),
		)
	}
	return nil
}

// RepeatedLinkStrategy looks at raw link occurrences: the same target
// repeated many times is typical of call-to-action phishing templates.
type RepeatedLinkStrategy struct{}

func NewRepeatedLinkStrategy() *RepeatedLinkStrategy {
	return &RepeatedLinkStrategy{}
}

func (s *RepeatedLinkStrategy) Name() string {
	return "Repeated Links"
}

func (s *RepeatedLinkStrategy) Detect(in Input, context *DetectionContext) []Signal {
	counts := make(map[string]int)
	for _, u := range in.Email.URLs {
		counts[u]++
	}
	// iterate in email order so the reported link is stable
	for _, u := range in.Email.URLs {
		if counts[u] >= repeatedLinkThreshold {
			return single(
				"REPEATED_LINK",
				repeatedLinkPoints,
				fmt.Sprintf("Same link repeated %d times: %s", counts[u], u),
			)
		}
	}
	return nil
}

// LinkDomainMismatchStrategy flags links that lead away from the sender's
// own organization. Whitelisted destinations never count.
type LinkDomainMismatchStrategy struct{}

func NewLinkDomainMismatchStrategy() *LinkDomainMismatchStrategy {
	return &LinkDomainMismatchStrategy{}
}

func (s *LinkDomainMismatchStrategy) Name() string {
	return "Sender/Link Domain Mismatch"
}

func (s *LinkDomainMismatchStrategy) Detect(in Input, context *DetectionContext) []Signal {
	senderDomain := registrableDomain(extractDomain(in.Email.SenderAddress))
	if senderDomain == "" {
		return nil
	}

	var foreign []string
	seen := make(map[string]bool)
	for _, u := range in.URLs {
		if u.Domain == "" || u.Reputation == domain.ReputationWhitelisted {
			continue
		}
		linkDomain := registrableDomain(u.Domain)
		if linkDomain == senderDomain || seen[linkDomain] {
			continue
		}
		seen[linkDomain] = true
		foreign = append(foreign, linkDomain)
	}
	if len(foreign) == 0 {
		return nil
	}

	return single(
		"LINK_DOMAIN_MISMATCH",
		linkDomainMismatchPoints,
		fmt.Sprintf("Links point to %s while sender domain is %s", strings.Join(foreign, ", "), senderDomain),
	)
}
