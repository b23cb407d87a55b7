package detection

import (
	"fmt"

	"github.com/stoik/phishing-detector/internal/domain"
)

// SenderReputationStrategy raises when the sender's own domain is in the
// malicious list of the reputation store, or when vendors reported it
// without reaching a malicious verdict. A whitelisted sender raises nothing.
type SenderReputationStrategy struct{}

func NewSenderReputationStrategy() *SenderReputationStrategy {
	return &SenderReputationStrategy{}
}

func (s *SenderReputationStrategy) Name() string {
	return "Sender Reputation"
}

func (s *SenderReputationStrategy) Detect(in Input, context *DetectionContext) []Signal {
	senderDomain := extractDomain(in.Email.SenderAddress)
	switch {
	case in.SenderStatus == domain.ReputationMalicious:
		return single(
			"MALICIOUS_SENDER_DOMAIN",
			25,
			fmt.Sprintf("Sender domain %s is listed as malicious", senderDomain),
		)
	case in.SenderStatus != domain.ReputationWhitelisted && len(in.SenderDetections) > 0:
		return single(
			"SENDER_DOMAIN_DETECTIONS",
			10,
			fmt.Sprintf("Sender domain %s has %d vendor detection(s)", senderDomain, len(in.SenderDetections)),
		)
	}
	return nil
}

// DisposableSenderStrategy flags throwaway mailbox providers
type DisposableSenderStrategy struct{}

func NewDisposableSenderStrategy() *DisposableSenderStrategy {
	return &DisposableSenderStrategy{}
}

func (s *DisposableSenderStrategy) Name() string {
	return "Disposable Sender"
}

func (s *DisposableSenderStrategy) Detect(in Input, context *DetectionContext) []Signal {
	senderDomain := extractDomain(in.Email.SenderAddress)
	if senderDomain == "" || !containsAny(senderDomain, context.DisposableDomains) {
		return nil
	}
	return single(
		"DISPOSABLE_SENDER",
		10,
		fmt.Sprintf("Suspicious sender domain: %s", senderDomain),
	)
}
