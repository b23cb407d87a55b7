package detection

import (
	"fmt"
	"regexp"
	"strings"
)

var embeddedAddress = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

var execTitles = []string{"ceo", "cfo", "president", "director", "chief", "vp", "vice president"}

// DisplayNameStrategy detects spoofed display names: executive titles or
// trusted brands used from outside domains, or a display name that carries
// a different email address than the real sender.
type DisplayNameStrategy struct{}

// NewDisplayNameStrategy creates a new display name mismatch detection strategy
func NewDisplayNameStrategy() *DisplayNameStrategy {
	return &DisplayNameStrategy{}
}

// Name returns the strategy name
func (s *DisplayNameStrategy) Name() string {
	return "Display Name Mismatch"
}

// Detect checks if sender display name implies an identity the sender address does not back
func (s *DisplayNameStrategy) Detect(in Input, context *DetectionContext) []Signal {
	rawName := in.Email.SenderName
	displayName := strings.ToLower(rawName)
	senderDomain := extractDomain(in.Email.SenderAddress)
	if displayName == "" || senderDomain == "" {
		return nil
	}

	if m := embeddedAddress.FindStringSubmatch(displayName); m != nil && m[1] != senderDomain {
		return s.signal(fmt.Sprintf(
			"Display name '%s' shows address at %s but sender domain is '%s'",
			rawName, m[1], senderDomain,
		))
	}

	if !isInternalDomain(senderDomain, context.InternalDomains) && containsWord(displayName, execTitles) {
		return s.signal(fmt.Sprintf(
			"Display name '%s' contains executive title but sender domain '%s' is external",
			rawName, senderDomain,
		))
	}

	senderOrg := registrableDomain(senderDomain)
	for _, trusted := range context.TrustedDomains {
		brand := strings.SplitN(trusted, ".", 2)[0]
		if len(brand) < 4 || senderOrg == registrableDomain(trusted) {
			continue
		}
		if strings.Contains(displayName, brand) {
			return s.signal(fmt.Sprintf(
				"Display name '%s' impersonates %s but sender domain is '%s'",
				rawName, trusted, senderDomain,
			))
		}
	}

	return nil
}

func (s *DisplayNameStrategy) signal(indicator string) []Signal {
	return single("DISPLAY_NAME_MISMATCH", 10, indicator)
}

// containsWord matches keywords on word boundaries so "vp" does not hit "vpn"
func containsWord(text string, words []string) bool {
	return firstMatch(text, words) != ""
}
