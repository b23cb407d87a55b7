package mailparser

import (
	"html"
	"regexp"
	"strings"
)

var (
	urlPattern             = regexp.MustCompile("(?i)\\bhttps?://[^\\s<>\"'`\\[\\]{}|\\\\^]+")
	embeddedAddressPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

const trailingPunctuation = ".,;:!?)]}'\""

// findURLs extracts absolute http(s) URLs from free text, in order, duplicates kept
func findURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		u := strings.TrimRight(html.UnescapeString(m), trailingPunctuation)
		if isAbsoluteHTTP(u) {
			urls = append(urls, u)
		}
	}
	return urls
}

func isAbsoluteHTTP(u string) bool {
	lower := strings.ToLower(u)
	for _, scheme := range []string{"http://", "https://"} {
		if strings.HasPrefix(lower, scheme) && len(lower) > len(scheme) {
			return true
		}
	}
	return false
}

// collectURLs merges the links of both renderings of a message. The HTML
// part is what the recipient sees, so its links come first; links that only
// the plain-text alternative carries are appended. Duplicates inside one
// rendering are preserved.
func (p *Parser) collectURLs(parts bodyParts) []string {
	urls := make([]string, 0)
	seen := make(map[string]bool)

	if parts.html != "" {
		for _, u := range p.html.URLs(parts.html) {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	for _, u := range findURLs(parts.text) {
		if parts.html != "" && seen[u] {
			continue
		}
		urls = append(urls, u)
	}
	return urls
}
