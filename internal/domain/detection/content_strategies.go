package detection

import (
	"fmt"
)

var urgencyKeywords = []string{
	"urgent", "immediate", "immediately", "expires today", "act now", "limited time",
	"within 24 hours", "account will be suspended", "account suspended",
	"final notice", "asap", "right away",
}

var credentialKeywords = []string{
	"password", "passcode", "social security", "ssn", "credit card",
	"bank account", "login credentials", "verify your account",
	"verify your identity", "confirm your details", "pin code",
}

var financialKeywords = []string{
	"wire transfer", "wire", "bank transfer", "payment", "invoice",
	"bank details", "routing number", "iban", "swift", "remittance",
	"gift card", "gift cards", "itunes", "google play", "prepaid card",
	"outstanding balance", "overdue",
}

// UrgencyStrategy detects pressure language in subject and body
type UrgencyStrategy struct{}

func NewUrgencyStrategy() *UrgencyStrategy {
	return &UrgencyStrategy{}
}

func (s *UrgencyStrategy) Name() string {
	return "Urgency Language"
}

func (s *UrgencyStrategy) Detect(in Input, context *DetectionContext) []Signal {
	word := firstMatch(emailText(in.Email.Subject, in.Email.Body), urgencyKeywords)
	if word == "" {
		return nil
	}
	return single("URGENCY_LANGUAGE", 10, fmt.Sprintf("Urgent language: '%s'", word))
}

// CredentialRequestStrategy detects requests for credentials or personal data
type CredentialRequestStrategy struct{}

func NewCredentialRequestStrategy() *CredentialRequestStrategy {
	return &CredentialRequestStrategy{}
}

func (s *CredentialRequestStrategy) Name() string {
	return "Credential Request"
}

func (s *CredentialRequestStrategy) Detect(in Input, context *DetectionContext) []Signal {
	word := firstMatch(emailText(in.Email.Subject, in.Email.Body), credentialKeywords)
	if word == "" {
		return nil
	}
	return single("CREDENTIAL_REQUEST", 15, fmt.Sprintf("Requests personal information: '%s'", word))
}

// FinancialRequestStrategy detects requests to move money, the core of
// invoice fraud and gift-card scams.
type FinancialRequestStrategy struct{}

func NewFinancialRequestStrategy() *FinancialRequestStrategy {
	return &FinancialRequestStrategy{}
}

func (s *FinancialRequestStrategy) Name() string {
	return "Financial Request"
}

// Detect needs money language backed by urgency, or at least two distinct
// money terms. A routine invoice notice mentions one and is left alone.
func (s *FinancialRequestStrategy) Detect(in Input, context *DetectionContext) []Signal {
	text := emailText(in.Email.Subject, in.Email.Body)
	financial := countMatches(text, financialKeywords)
	urgency := countMatches(text, urgencyKeywords)
	if financial == 0 || (urgency == 0 && financial < 2) {
		return nil
	}
	return single(
		"FINANCIAL_REQUEST",
		15,
		fmt.Sprintf("Payment request language: %d financial, %d urgency keyword(s)", financial, urgency),
	)
}
