package detection

import (
	"testing"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector() *Detector {
	return NewDetector(NewDetectionContext(
		[]string{"company.com"},
		[]string{"microsoft.com", "paypal.com"},
	))
}

func maliciousURL(domainName string, detections ...domain.Detection) domain.URLAnalysis {
	u := domain.URLAnalysis{
		OriginalURL: "https://" + domainName + "/login",
		Domain:      domainName,
		Reputation:  domain.ReputationMalicious,
		IsMalicious: true,
		Detections:  detections,
	}
	u.RiskScore = URLRiskScore(u)
	return u
}

func TestDetector_Analyze_NoSignals(t *testing.T) {
	analysis := newTestDetector().Analyze(Input{
		Email: domain.ParsedEmail{
			Sender:        "Alice <alice@company.com>",
			SenderName:    "Alice",
			SenderAddress: "alice@company.com",
			Subject:       "Lunch",
			Body:          "See you at noon.",
		},
	})

	assert.Equal(t, 0, analysis.Score)
	assert.Equal(t, domain.RiskLow, analysis.RiskBand)
	assert.Equal(t, "Low risk (score 0): no significant phishing indicators detected", analysis.Summary)
	assert.Empty(t, analysis.Indicators)
	assert.NotNil(t, analysis.Detections)
	assert.Empty(t, analysis.Detections)
	assert.Equal(t, domain.CurrentSchemaVersion, analysis.SchemaVersion)
}

func TestDetector_Analyze_MaliciousLinkDominates(t *testing.T) {
	analysis := newTestDetector().Analyze(Input{
		Email: domain.ParsedEmail{SenderAddress: "news@evil-domain.com", Body: "hello"},
		URLs: []domain.URLAnalysis{
			maliciousURL("evil-domain.com", domain.Detection{Vendor: "Kaspersky", Verdict: "Phishing"}),
		},
	})

	assert.GreaterOrEqual(t, analysis.Score, 50)
	assert.Equal(t, domain.RiskMedium, analysis.RiskBand)
	assert.Equal(t, []domain.Detection{{Vendor: "Kaspersky", Verdict: "Phishing"}}, analysis.Detections)
	assert.Contains(t, analysis.Indicators[0], "evil-domain.com")
}

func TestDetector_Analyze_ExtraMaliciousDomainsCapped(t *testing.T) {
	urls := []domain.URLAnalysis{
		maliciousURL("a.test"), maliciousURL("b.test"), maliciousURL("c.test"),
		maliciousURL("d.test"), maliciousURL("e.test"),
	}
	signals := NewMaliciousLinkStrategy().Detect(Input{URLs: urls}, NewDetectionContext(nil, nil))

	require.Len(t, signals, 1)
	assert.Equal(t, 75, signals[0].Points)
}

func TestDetector_Analyze_ScoreClamped(t *testing.T) {
	analysis := newTestDetector().Analyze(Input{
		Email: domain.ParsedEmail{
			SenderName:    "John Smith, CEO",
			SenderAddress: "john@micros0ft.com",
			ReplyTo:       "attacker@gmail.com",
			Subject:       "URGENT: verify your account",
			Body:          "Send your password immediately.",
			Attachments:   []domain.Attachment{{Filename: "invoice.pdf.exe"}, {Filename: "report.docm"}},
			Headers: map[string]string{
				"Received-SPF":           "fail",
				"Authentication-Results": "dkim=fail; dmarc=fail",
			},
		},
		URLs:         []domain.URLAnalysis{maliciousURL("a.test"), maliciousURL("b.test")},
		SenderStatus: domain.ReputationMalicious,
	})

	assert.Equal(t, 100, analysis.Score)
	assert.Equal(t, domain.RiskHigh, analysis.RiskBand)
}

func TestDetector_Analyze_Deterministic(t *testing.T) {
	detector := newTestDetector()
	in := Input{
		Email: domain.ParsedEmail{
			SenderAddress: "billing@paypa1.com",
			Subject:       "Action required",
			Body:          "Your account will be suspended. Confirm your details at the link.",
			URLs:          []string{"https://bit.ly/x", "https://bit.ly/x", "https://bit.ly/x"},
		},
		URLs: []domain.URLAnalysis{{
			OriginalURL: "https://bit.ly/x",
			IsShortened: true,
			ExpandedURL: "https://paypa1-login.com/",
			Domain:      "paypa1-login.com",
		}},
	}

	first := detector.Analyze(in)
	for range 20 {
		assert.Equal(t, first, detector.Analyze(in))
	}
	assert.Equal(t, 15+5+10+15+10+15, first.Score)
	assert.Equal(t, domain.RiskHigh, first.RiskBand)
}

func TestDetector_Analyze_IndicatorsDeduplicated(t *testing.T) {
	dup := staticStrategy{Signal{Type: "X", Points: 5, Indicator: "same"}}
	d := &Detector{
		strategies: []DetectionStrategy{dup, dup},
		context:    NewDetectionContext(nil, nil),
	}

	analysis := d.Analyze(Input{})
	assert.Equal(t, []string{"same"}, analysis.Indicators)
	assert.Equal(t, 10, analysis.Score)
}

func TestDetector_Analyze_DetectionsOnlyFromMaliciousURLs(t *testing.T) {
	shared := domain.Detection{Vendor: "ESET", Verdict: "Phishing"}
	urls := []domain.URLAnalysis{
		maliciousURL("a.test", shared),
		maliciousURL("b.test", shared, domain.Detection{Vendor: "Norton", Verdict: "Malicious"}),
		{Domain: "c.test", Detections: []domain.Detection{{Vendor: "Avast", Verdict: "Suspicious"}}},
	}

	analysis := newTestDetector().Analyze(Input{URLs: urls})
	assert.Equal(t, []domain.Detection{shared, {Vendor: "Norton", Verdict: "Malicious"}}, analysis.Detections)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "Medium risk (score 40): a; b", Summarize(40, []string{"a", "b"}))
	assert.Equal(t, "High risk (score 90): a; b; c (+2 more)", Summarize(90, []string{"a", "b", "c", "d", "e"}))
}

func TestURLRiskScore(t *testing.T) {
	tests := []struct {
		name     string
		url      domain.URLAnalysis
		expected int
	}{
		{"clean", domain.URLAnalysis{}, 0},
		{"shortened", domain.URLAnalysis{IsShortened: true}, 15},
		{"malicious floor", domain.URLAnalysis{IsMalicious: true}, 70},
		{"many detections", domain.URLAnalysis{IsMalicious: true, IsShortened: true, Detections: make([]domain.Detection, 12)}, 100},
		{"whitelisted", domain.URLAnalysis{Reputation: domain.ReputationWhitelisted, IsShortened: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, URLRiskScore(tt.url))
		})
	}
}

type staticStrategy []Signal

func (s staticStrategy) Name() string { return "static" }

func (s staticStrategy) Detect(Input, *DetectionContext) []Signal { return s }

func TestSenderReputationStrategy_Detect(t *testing.T) {
	detections := []domain.Detection{{Vendor: "Avira", Verdict: "suspicious"}}
	tests := []struct {
		name       string
		status     domain.ReputationStatus
		detections []domain.Detection
		wantType   string
	}{
		{"malicious", domain.ReputationMalicious, nil, "MALICIOUS_SENDER_DOMAIN"},
		{"detections only", domain.ReputationUnknown, detections, "SENDER_DOMAIN_DETECTIONS"},
		{"whitelisted overrides detections", domain.ReputationWhitelisted, detections, ""},
		{"nothing known", domain.ReputationUnknown, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{
				Email:            domain.ParsedEmail{SenderAddress: "x@sender.test"},
				SenderStatus:     tt.status,
				SenderDetections: tt.detections,
			}
			signals := NewSenderReputationStrategy().Detect(in, NewDetectionContext(nil, nil))
			if tt.wantType == "" {
				assert.Empty(t, signals)
				return
			}
			require.Len(t, signals, 1)
			assert.Equal(t, tt.wantType, signals[0].Type)
		})
	}
}

func TestDetectionContext_SkipsSenderLookup(t *testing.T) {
	context := NewDetectionContext([]string{"company.com"}, nil)
	assert.True(t, context.SkipsSenderLookup("company.com"))
	assert.True(t, context.SkipsSenderLookup("gmail.com"))
	assert.True(t, context.SkipsSenderLookup("tutanota.com"))
	assert.False(t, context.SkipsSenderLookup("shop.test"))
}
