package detection

import (
	"fmt"
	"strings"

	"github.com/stoik/phishing-detector/internal/domain"
)

const summaryIndicators = 3

// Detector scores emails using pluggable strategies
//
// Each strategy contributes fixed points for the signal it recognizes. The
// final score is the clamped sum, so a malicious link (the dominant signal)
// alone lands in the Medium band and any corroborating heuristic pushes it
// to High.
type Detector struct {
	strategies []DetectionStrategy
	context    *DetectionContext
}

// NewDetector creates a detector with all standard detection strategies
func NewDetector(context *DetectionContext) *Detector {
	if context == nil {
		context = NewDetectionContext(nil, nil)
	}

	// Order matters: it is the order of indicators in the result
	strategies := []DetectionStrategy{
		NewMaliciousLinkStrategy(),
		NewSenderReputationStrategy(),
		NewShortenedLinkStrategy(),
		NewRepeatedLinkStrategy(),
		NewUrgencyStrategy(),
		NewCredentialRequestStrategy(),
		NewFinancialRequestStrategy(),
		NewLinkDomainMismatchStrategy(),
		NewDisplayNameStrategy(),
		NewReplyToStrategy(),
		NewTyposquattingStrategy(),
		NewAuthFailuresStrategy(),
		NewDisposableSenderStrategy(),
		NewAttachmentStrategy(),
	}

	return &Detector{
		strategies: strategies,
		context:    context,
	}
}

// Context returns the shared detection context
func (d *Detector) Context() *DetectionContext {
	return d.context
}

// Analyze runs all detection strategies and builds the canonical analysis
func (d *Detector) Analyze(in Input) domain.AIAnalysis {
	signals := d.Signals(in)

	total := 0
	indicators := make([]string, 0, len(signals))
	seen := make(map[string]bool, len(signals))
	for _, sig := range signals {
		total += sig.Points
		if seen[sig.Indicator] {
			continue
		}
		seen[sig.Indicator] = true
		indicators = append(indicators, sig.Indicator)
	}

	score := domain.ClampScore(total)
	band := domain.RiskLevel(score)

	return domain.AIAnalysis{
		SchemaVersion: domain.CurrentSchemaVersion,
		Score:         score,
		RiskBand:      band,
		Summary:       Summarize(score, indicators),
		Indicators:    indicators,
		Detections:    maliciousDetections(in.URLs),
		URLAnalysis:   in.URLs,
	}
}

// Signals returns the raw contributions of every strategy, in strategy order
func (d *Detector) Signals(in Input) []Signal {
	signals := make([]Signal, 0)
	for _, strategy := range d.strategies {
		signals = append(signals, strategy.Detect(in, d.context)...)
	}
	return signals
}

// Summarize renders the deterministic one-line synthesis of a verdict
func Summarize(score int, indicators []string) string {
	band := domain.RiskLevel(score)
	if len(indicators) == 0 {
		return fmt.Sprintf("%s risk (score %d): no significant phishing indicators detected", band, score)
	}
	shown := indicators[:min(len(indicators), summaryIndicators)]
	summary := fmt.Sprintf("%s risk (score %d): %s", band, score, strings.Join(shown, "; "))
	if rest := len(indicators) - len(shown); rest > 0 {
		summary += fmt.Sprintf(" (+%d more)", rest)
	}
	return summary
}

// maliciousDetections aggregates vendor verdicts of the URLs found malicious,
// dropping duplicate (vendor, verdict) pairs
func maliciousDetections(urls []domain.URLAnalysis) []domain.Detection {
	detections := make([]domain.Detection, 0)
	seen := make(map[domain.Detection]bool)
	for _, u := range urls {
		if !u.IsMalicious {
			continue
		}
		for _, det := range u.Detections {
			if seen[det] {
				continue
			}
			seen[det] = true
			detections = append(detections, det)
		}
	}
	return detections
}

// URLRiskScore grades a single URL. Whitelisted destinations are always 0;
// a malicious one never scores below the High band.
func URLRiskScore(u domain.URLAnalysis) int {
	if u.Reputation == domain.ReputationWhitelisted {
		return 0
	}
	score := 10 * len(u.Detections)
	if u.IsShortened {
		score += shortenedLinkPoints
	}
	if u.IsMalicious {
		score = max(score, 70)
	}
	return domain.ClampScore(score)
}
