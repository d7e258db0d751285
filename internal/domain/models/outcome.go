package models

import "fmt"

// OutcomeKind classifies a backend reply.
type OutcomeKind string

const (
	OutcomeSent        OutcomeKind = "sent"
	OutcomeRateLimited OutcomeKind = "rate_limited"
	OutcomeNotSent     OutcomeKind = "not_sent"
)

const (
	codeSent          = 2
	rateLimitBaseCode = 300
)

// Outcome is the decoded form of a backend response code.
type Outcome struct {
	Kind OutcomeKind
	// WaitSeconds is only meaningful for OutcomeRateLimited.
	WaitSeconds int64
}

// Interpret decodes the numeric contract of the relay controller:
// 2 means sent, 300 and above means throttled for (code-300) seconds,
// anything else means the command was not sent.
func Interpret(code int64) Outcome {
	switch {
	case code == codeSent:
		return Outcome{Kind: OutcomeSent}
	case code >= rateLimitBaseCode:
		return Outcome{Kind: OutcomeRateLimited, WaitSeconds: code - rateLimitBaseCode}
	default:
		return Outcome{Kind: OutcomeNotSent}
	}
}

func (o Outcome) String() string {
	if o.Kind == OutcomeRateLimited {
		return fmt.Sprintf("%s(%ds)", o.Kind, o.WaitSeconds)
	}
	return string(o.Kind)
}
