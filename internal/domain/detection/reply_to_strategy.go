package detection

import (
	"fmt"
	"slices"
	"strings"
)

// ReplyToStrategy detects replies diverted away from the apparent sender
type ReplyToStrategy struct{}

func NewReplyToStrategy() *ReplyToStrategy {
	return &ReplyToStrategy{}
}

func (s *ReplyToStrategy) Name() string {
	return "Reply-To Mismatch"
}

// Detect fires when Reply-To points to a consumer mailbox, or to a domain
// spelled almost like the sender's own.
func (s *ReplyToStrategy) Detect(in Input, context *DetectionContext) []Signal {
	sender := strings.ToLower(in.Email.SenderAddress)
	replyTo := strings.ToLower(in.Email.ReplyTo)
	if replyTo == "" || replyTo == sender {
		return nil
	}

	senderDomain := registrableDomain(extractDomain(sender))
	replyDomain := registrableDomain(extractDomain(replyTo))
	if replyDomain == "" || replyDomain == senderDomain {
		return nil
	}

	switch {
	case slices.Contains(context.FreeMailDomains, replyDomain):
		return single(
			"REPLY_TO_MISMATCH",
			10,
			fmt.Sprintf("Sender: %s, Reply-To: %s (free email service, redirects responses)", sender, replyTo),
		)
	case senderDomain != "" && domainSimilarity(senderDomain, replyDomain) > lookAlikeThreshold:
		return single(
			"REPLY_TO_MISMATCH",
			10,
			fmt.Sprintf("Sender: %s, Reply-To: %s (look-alike of the sender domain)", sender, replyTo),
		)
	}
	return nil
}
