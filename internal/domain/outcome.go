package domain

// OutcomeState tags whether an external lookup produced a usable value
type OutcomeState string

const (
	OutcomeResolved OutcomeState = "resolved"
	OutcomeDegraded OutcomeState = "degraded"
	OutcomeSkipped  OutcomeState = "skipped"
)

// Outcome records how a sub-result was obtained. A degraded outcome means the
// value is a fallback (original URL, last known reputation), not a confirmed
// answer, so callers can tell "benign" apart from "unknown".
type Outcome struct {
	State  OutcomeState `json:"state"`
	Reason string       `json:"reason,omitempty"`
}

func Resolved() Outcome { return Outcome{State: OutcomeResolved} }

func Degraded(reason string) Outcome { return Outcome{State: OutcomeDegraded, Reason: reason} }

func Skipped(reason string) Outcome { return Outcome{State: OutcomeSkipped, Reason: reason} }

func (o Outcome) IsDegraded() bool { return o.State == OutcomeDegraded }
