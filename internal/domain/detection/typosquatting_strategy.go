package detection

import (
	"fmt"
	"slices"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// lookAlikeThreshold catches one-character swaps on typical brand domains
// without flagging unrelated short ones
const lookAlikeThreshold = 85

// TyposquattingStrategy flags sender domains posing as a trusted brand,
// either through a near-identical spelling or by carrying the brand name
// inside a domain the brand does not own.
type TyposquattingStrategy struct{}

func NewTyposquattingStrategy() *TyposquattingStrategy {
	return &TyposquattingStrategy{}
}

func (s *TyposquattingStrategy) Name() string {
	return "Domain Typosquatting"
}

func (s *TyposquattingStrategy) Detect(in Input, context *DetectionContext) []Signal {
	host := extractDomain(in.Email.SenderAddress)
	if host == "" {
		return nil
	}
	sender := registrableDomain(host)

	for _, trusted := range context.TrustedDomains {
		if sender == trusted {
			return nil
		}
	}

	for _, trusted := range context.TrustedDomains {
		if similarity := domainSimilarity(sender, trusted); similarity > lookAlikeThreshold {
			return single(
				"DOMAIN_TYPOSQUATTING",
				15,
				fmt.Sprintf("Sender domain '%s' is %.1f%% similar to trusted domain '%s' (potential typosquatting)",
					sender, similarity, trusted),
			)
		}
	}

	for _, trusted := range context.TrustedDomains {
		brand := brandLabel(trusted)
		if hasToken(host, brand) {
			return single(
				"DOMAIN_TYPOSQUATTING",
				15,
				fmt.Sprintf("Sender domain '%s' uses the '%s' brand but is not %s (potential typosquatting)",
					host, brand, trusted),
			)
		}
	}

	return nil
}

// brandLabel is the leftmost label of a registrable domain (paypal.co.uk -> paypal)
func brandLabel(registrable string) string {
	label, _, _ := strings.Cut(registrable, ".")
	return label
}

// hasToken reports whether token is one of the dot or hyphen separated parts of host
func hasToken(host, token string) bool {
	parts := strings.FieldsFunc(host, func(r rune) bool { return r == '.' || r == '-' })
	return slices.Contains(parts, token)
}

// domainSimilarity is 100 minus the Levenshtein distance as a percentage of the longer name
func domainSimilarity(a, b string) float64 {
	maxLen := max(len(a), len(b))
	if maxLen == 0 {
		return 100
	}
	distance := fuzzy.LevenshteinDistance(a, b)
	return (1.0 - float64(distance)/float64(maxLen)) * 100
}
