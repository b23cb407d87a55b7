package detection

import (
	"fmt"
	"strings"
)

// AuthFailuresStrategy detects email authentication failures
//
// SPF, DKIM and DMARC verify that a message really comes from the claimed
// domain. Failures recorded by the receiving server indicate spoofing.
type AuthFailuresStrategy struct{}

func NewAuthFailuresStrategy() *AuthFailuresStrategy {
	return &AuthFailuresStrategy{}
}

func (s *AuthFailuresStrategy) Name() string {
	return "Authentication Failures"
}

var authFailures = map[string][]string{
	"spf":   {"fail", "softfail"},
	"dkim":  {"fail"},
	"dmarc": {"fail"},
}

// Detect needs two failing mechanisms: legitimate misconfigurations usually
// break only one.
func (s *AuthFailuresStrategy) Detect(in Input, context *DetectionContext) []Signal {
	results := authResults(in.Email.Headers["Authentication-Results"])
	if spf, ok := in.Email.Headers["Received-SPF"]; ok {
		if verdict, _, _ := strings.Cut(strings.TrimSpace(strings.ToLower(spf)), " "); verdict != "" {
			results["spf"] = verdict
		}
	}

	var failures []string
	for _, method := range []string{"spf", "dkim", "dmarc"} {
		for _, bad := range authFailures[method] {
			if results[method] == bad {
				failures = append(failures, strings.ToUpper(method)+"_FAIL")
				break
			}
		}
	}

	if len(failures) < 2 {
		return nil
	}
	return single(
		"AUTH_FAILURES",
		10,
		fmt.Sprintf("Email authentication failures: %s", strings.Join(failures, ", ")),
	)
}

// authResults reads the method=result pairs of an Authentication-Results
// header. The first result seen for a method wins.
func authResults(header string) map[string]string {
	results := make(map[string]string)
	for _, clause := range strings.Split(strings.ToLower(header), ";") {
		for _, field := range strings.Fields(clause) {
			method, result, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			if _, known := authFailures[method]; known {
				if _, seen := results[method]; !seen {
					results[method] = result
				}
			}
		}
	}
	return results
}
