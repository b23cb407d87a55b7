package domain

import (
	"time"

	"github.com/google/uuid"
)

// CurrentSchemaVersion is the version of the canonical AIAnalysis shape
const CurrentSchemaVersion = 2

// ReputationStatus is the classification of a domain in the reputation store
type ReputationStatus string

const (
	ReputationUnknown     ReputationStatus = "unknown"
	ReputationMalicious   ReputationStatus = "malicious"
	ReputationWhitelisted ReputationStatus = "whitelisted"
)

// RiskBand is the display category derived from a numeric score
type RiskBand string

const (
	RiskLow    RiskBand = "Low"
	RiskMedium RiskBand = "Medium"
	RiskHigh   RiskBand = "High"
)

// Attachment describes a file attached to an email
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// ParsedEmail is the normalized form of an uploaded message.
//
// URLs keeps every absolute link in first-seen order, duplicates included:
// repeated links (tracking pixels, repeated call-to-action buttons) are
// part of the message structure and feed the scoring heuristics.
type ParsedEmail struct {
	Sender        string            `json:"sender"`
	SenderName    string            `json:"sender_name,omitempty"`
	SenderAddress string            `json:"sender_address,omitempty"`
	ReplyTo       string            `json:"reply_to,omitempty"`
	Subject       string            `json:"subject"`
	Body          string            `json:"body"`
	URLs          []string          `json:"urls"`
	Attachments   []Attachment      `json:"attachments"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// Detection is a single vendor verdict for a domain or URL
type Detection struct {
	Vendor  string `json:"vendor"`
	Verdict string `json:"verdict"`
	// Category is the vendor's own classification when it reports one
	// separately from the verdict label (malicious, suspicious, phishing)
	Category string `json:"category,omitempty"`
}

// DomainLists is the operator view of the reputation store
type DomainLists struct {
	Malicious   []string `json:"malicious"`
	Whitelisted []string `json:"whitelisted"`
}

// Resolution is the output of the URL resolver for one link
type Resolution struct {
	OriginalURL string  `json:"original_url"`
	IsShortened bool    `json:"is_shortened"`
	ExpandedURL string  `json:"expanded_url,omitempty"`
	Outcome     Outcome `json:"outcome"`
}

// IntelResult is the aggregated threat-intel view of one domain
type IntelResult struct {
	Domain      string           `json:"domain"`
	Reputation  ReputationStatus `json:"reputation"`
	IsMalicious bool             `json:"is_malicious"`
	Detections  []Detection      `json:"detections"`
	// FlaggingSources counts the sources whose classifier reported malicious
	FlaggingSources int     `json:"flagging_sources"`
	Outcome         Outcome `json:"outcome"`
}

// URLAnalysis is the verdict for one distinct URL of an email
type URLAnalysis struct {
	OriginalURL string           `json:"original_url"`
	IsShortened bool             `json:"is_shortened"`
	ExpandedURL string           `json:"expanded_url,omitempty"`
	Domain      string           `json:"domain"`
	Reputation  ReputationStatus `json:"reputation"`
	IsMalicious bool             `json:"is_malicious"`
	RiskScore   int              `json:"risk_score"`
	Detections  []Detection      `json:"detections"`
	Resolution  Outcome          `json:"resolution"`
	Intel       Outcome          `json:"intel"`
}

// AIAnalysis is the classification output of the risk scoring engine
type AIAnalysis struct {
	SchemaVersion int           `json:"schema_version"`
	Score         int           `json:"score"`
	RiskBand      RiskBand      `json:"risk_band"`
	Summary       string        `json:"summary"`
	Indicators    []string      `json:"indicators"`
	Detections    []Detection   `json:"detections"`
	URLAnalysis   []URLAnalysis `json:"url_analysis"`
}

// ScanRecord is one immutable entry of the history ledger
type ScanRecord struct {
	ID          uuid.UUID   `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Fingerprint string      `json:"fingerprint"`
	ParsedEmail ParsedEmail `json:"parsed_email"`
	AIAnalysis  AIAnalysis  `json:"ai_analysis"`
}

// ScanSummary carries what a history row needs without the full record
type ScanSummary struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Subject   string    `json:"subject"`
	Score     int       `json:"score"`
	RiskBand  RiskBand  `json:"risk_band"`
	Summary   string    `json:"summary"`
}

// Summary projects a record onto its history row
func (r ScanRecord) Summary() ScanSummary {
	return ScanSummary{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Sender:    r.ParsedEmail.Sender,
		Subject:   r.ParsedEmail.Subject,
		Score:     r.AIAnalysis.Score,
		RiskBand:  r.AIAnalysis.RiskBand,
		Summary:   r.AIAnalysis.Summary,
	}
}

// RiskLevel converts a risk score to its band
func RiskLevel(score int) RiskBand {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	default:
		return RiskLow
	}
}

// ClampScore bounds a score to [0,100]
func ClampScore(score int) int {
	return max(0, min(score, 100))
}

// CacheStats describes the live (unexpired) threat-intel cache entries.
// An entry is flagged when its source reported at least one detection.
type CacheStats struct {
	TotalEntries   int            `json:"total_entries"`
	FlaggedEntries int            `json:"flagged_entries"`
	CleanEntries   int            `json:"clean_entries"`
	BySource       map[string]int `json:"by_source"`
}

// Count adds one live entry to the stats
func (c *CacheStats) Count(source string, detections int) {
	if c.BySource == nil {
		c.BySource = make(map[string]int)
	}
	c.TotalEntries++
	c.BySource[source]++
	if detections > 0 {
		c.FlaggedEntries++
	} else {
		c.CleanEntries++
	}
}
