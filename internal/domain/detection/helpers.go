package detection

import (
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// isInternalDomain checks if a domain belongs to the organization
func isInternalDomain(domain string, internalDomains []string) bool {
	return slices.Contains(internalDomains, domain)
}

// extractDomain extracts the domain from an email address
func extractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "" // Malformed email address
	}
	return strings.ToLower(strings.TrimSuffix(parts[1], "."))
}

// registrableDomain reduces a host to its eTLD+1 (mail.paypal.co.uk -> paypal.co.uk)
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	if host == "" {
		return ""
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}

// containsAny checks if text contains any of the keywords as a substring
func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// firstMatch returns the first keyword, in list order, that appears in text
// on word boundaries, so "ssn" does not hit "lessness"
func firstMatch(text string, keywords []string) string {
	joined := wordText(text)
	for _, keyword := range keywords {
		if strings.Contains(joined, " "+keyword+" ") {
			return keyword
		}
	}
	return ""
}

// countMatches counts the keywords that appear in text on word boundaries
func countMatches(text string, keywords []string) int {
	joined := wordText(text)
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(joined, " "+keyword+" ") {
			count++
		}
	}
	return count
}

// wordText reduces lower-case text to its words separated by single spaces,
// padded on both ends.
func wordText(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return " " + strings.Join(fields, " ") + " "
}

func emailText(subject, body string) string {
	return strings.ToLower(subject + " " + body)
}
