package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// analysisWire accepts every historical serialization of an analysis.
// Older records used ai_score/ai_summary/threat_indicators and a
// free-form risk_level; they all describe the same AIAnalysis.
type analysisWire struct {
	SchemaVersion    int           `json:"schema_version"`
	Score            *float64      `json:"score"`
	AIScore          *float64      `json:"ai_score"`
	Summary          *string       `json:"summary"`
	AISummary        *string       `json:"ai_summary"`
	Indicators       []string      `json:"indicators"`
	ThreatIndicators []string      `json:"threat_indicators"`
	Detections       []Detection   `json:"detections"`
	URLAnalysis      []URLAnalysis `json:"url_analysis"`
}

// UnmarshalJSON normalizes legacy field variants into the canonical shape.
// The band is always recomputed from the score.
func (a *AIAnalysis) UnmarshalJSON(data []byte) error {
	var w analysisWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	score := w.Score
	if score == nil {
		score = w.AIScore
	}
	summary := w.Summary
	if summary == nil {
		summary = w.AISummary
	}
	indicators := w.Indicators
	if indicators == nil {
		indicators = w.ThreatIndicators
	}

	*a = AIAnalysis{
		SchemaVersion: CurrentSchemaVersion,
		Indicators:    indicators,
		Detections:    w.Detections,
		URLAnalysis:   w.URLAnalysis,
	}
	if score != nil {
		a.Score = ClampScore(int(math.Round(*score)))
	}
	if summary != nil {
		a.Summary = *summary
	}
	a.RiskBand = RiskLevel(a.Score)
	return nil
}

// UnmarshalJSON accepts both {"vendor":..,"verdict":..} and the legacy
// two-element ["vendor","verdict"] pair.
func (d *Detection) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("detection pair must have 2 elements, got %d", len(pair))
		}
		*d = Detection{Vendor: pair[0], Verdict: pair[1]}
		return nil
	}

	type plain Detection
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Detection(p)
	return nil
}

// DecodeScanRecord reads a stored record, normalizing legacy analysis fields
func DecodeScanRecord(data []byte) (ScanRecord, error) {
	var rec ScanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return ScanRecord{}, fmt.Errorf("failed to decode scan record: %w", err)
	}
	return rec, nil
}

// EncodeScanRecord writes the canonical serialization of a record
func EncodeScanRecord(rec ScanRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan record: %w", err)
	}
	return data, nil
}
