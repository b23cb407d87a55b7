package intel

import (
	"errors"
	"strings"

	"github.com/stoik/phishing-detector/internal/domain"
)

var (
	ErrUnauthorized = errors.New("intel source rejected credentials")
	ErrRateLimited  = errors.New("intel source rate limit reached")
	ErrUnavailable  = errors.New("intel source unavailable")
)

// VerdictRule decides whether a set of vendor verdicts means "malicious".
// A detection carrying a Category is counted by that category alone;
// otherwise its verdict matches keywords case-insensitively as substrings.
type VerdictRule struct {
	MaliciousKeywords []string
	// MinMalicious is how many malicious verdicts are needed (0 is read as 1)
	MinMalicious int

	SuspiciousKeywords []string
	// SuspiciousThreshold is how many suspicious verdicts also count as
	// malicious; 0 disables the suspicious path
	SuspiciousThreshold int
}

// Classify applies the rule
func (r VerdictRule) Classify(detections []domain.Detection) bool {
	malicious, suspicious := 0, 0
	for _, d := range detections {
		switch verdictClass(d, r) {
		case classMalicious:
			malicious++
		case classSuspicious:
			suspicious++
		}
	}

	if malicious > 0 && malicious >= max(r.MinMalicious, 1) {
		return true
	}
	return r.SuspiciousThreshold > 0 && suspicious >= r.SuspiciousThreshold
}

type verdictClassification int

const (
	classNone verdictClassification = iota
	classSuspicious
	classMalicious
)

func verdictClass(d domain.Detection, r VerdictRule) verdictClassification {
	if d.Category != "" {
		switch strings.ToLower(d.Category) {
		case "malicious", "phishing":
			return classMalicious
		case "suspicious":
			return classSuspicious
		}
		return classNone
	}

	verdict := strings.ToLower(d.Verdict)
	switch {
	case matchesAny(verdict, r.MaliciousKeywords):
		return classMalicious
	case matchesAny(verdict, r.SuspiciousKeywords):
		return classSuspicious
	}
	return classNone
}

func matchesAny(verdict string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(verdict, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

var maliciousKeywords = []string{"malicious", "phishing", "malware", "fraud", "trojan", "scam"}

// VirusTotalRule: any engine calling the domain malicious, or more than two
// suspicious ones
var VirusTotalRule = VerdictRule{
	MaliciousKeywords:   maliciousKeywords,
	SuspiciousKeywords:  []string{"suspicious", "spam"},
	SuspiciousThreshold: 3,
}

// FeedRule is used by block-list feeds where presence is the verdict
var FeedRule = VerdictRule{MaliciousKeywords: []string{"phishing"}}

// StaticRule needs two independent vendors to agree
var StaticRule = VerdictRule{
	MaliciousKeywords: append([]string{"spam"}, maliciousKeywords...),
	MinMalicious:      2,
}
