package models

// State enumerates the steps of the relay conversation protocol.
type State string

const (
	StateAwaitingStart    State = "awaiting_start"
	StateAwaitingIdentity State = "awaiting_identity"
	StateSelectingTarget  State = "selecting_target"
)

// Session is the per-chat conversation record owned by the session store.
type Session struct {
	ID       string
	State    State
	Identity string
}

// Authenticated reports whether the session has passed the allow-list check.
func (s Session) Authenticated() bool {
	return s.Identity != ""
}

// InboundEvent is one message delivered by the chat transport for a session.
type InboundEvent struct {
	SessionID string
	// Identity is set when the user shared a contact; empty otherwise.
	Identity string
	Payload  string
}
