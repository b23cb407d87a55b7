package detection

import (
	"testing"

	"github.com/stoik/phishing-detector/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentStrategies_Detect(t *testing.T) {
	context := NewDetectionContext(nil, nil)

	tests := []struct {
		name      string
		strategy  DetectionStrategy
		subject   string
		body      string
		signal    string // empty when nothing should fire
		indicator string
	}{
		{
			name:      "urgent subject",
			strategy:  NewUrgencyStrategy(),
			subject:   "URGENT: read this",
			signal:    "URGENCY_LANGUAGE",
			indicator: "Urgent language: 'urgent'",
		},
		{
			name:     "asap inside another word",
			strategy: NewUrgencyStrategy(),
			body:     "Dinner at Casapasta tonight.",
		},
		{
			name:      "social security number requested",
			strategy:  NewCredentialRequestStrategy(),
			body:      "Reply with your SSN to keep benefits.",
			signal:    "CREDENTIAL_REQUEST",
			indicator: "Requests personal information: 'ssn'",
		},
		{
			name:     "ssn inside another word",
			strategy: NewCredentialRequestStrategy(),
			body:     "The endlessness of this quarter. Harmlessness is key.",
		},
		{
			name:      "urgent wire transfer",
			strategy:  NewFinancialRequestStrategy(),
			subject:   "URGENT: Wire Transfer Needed",
			body:      "Please process this immediately.",
			signal:    "FINANCIAL_REQUEST",
			indicator: "Payment request language: 2 financial, 2 urgency keyword(s)",
		},
		{
			name:      "gift cards with no urgency",
			strategy:  NewFinancialRequestStrategy(),
			subject:   "Quick favor",
			body:      "Buy some iTunes gift cards and send me the codes.",
			signal:    "FINANCIAL_REQUEST",
			indicator: "Payment request language: 2 financial, 0 urgency keyword(s)",
		},
		{
			name:     "routine invoice notice",
			strategy: NewFinancialRequestStrategy(),
			subject:  "Invoice #12345",
			body:     "Please find attached the invoice for services rendered.",
		},
		{
			name:     "urgency without money",
			strategy: NewFinancialRequestStrategy(),
			subject:  "Urgent: meeting today",
			body:     "We need to discuss the project.",
		},
		{
			name:     "pay inside another word",
			strategy: NewFinancialRequestStrategy(),
			subject:  "Urgent",
			body:     "Update the payroll spreadsheet and the swiftly approved prepayments.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Email: domain.ParsedEmail{Subject: tt.subject, Body: tt.body}}
			signals := tt.strategy.Detect(in, context)

			if tt.signal == "" {
				assert.Empty(t, signals)
				return
			}
			require.Len(t, signals, 1)
			assert.Equal(t, tt.signal, signals[0].Type)
			assert.Equal(t, tt.indicator, signals[0].Indicator)
		})
	}
}
