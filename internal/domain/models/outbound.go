package models

// OutboundMessageRequest represents requests to send a message manually via the API.
type OutboundMessageRequest struct {
	ChatID  int64  `json:"chat_id" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Reply is one message the conversation controller wants delivered to the session.
type Reply struct {
	Text     string
	Keyboard *Keyboard
}

// Keyboard is a set of quick-reply buttons laid out in rows.
type Keyboard struct {
	Rows [][]Button
}

// Button is a single quick-reply affordance.
type Button struct {
	Text string
	// RequestContact asks the client to share the user's phone number.
	RequestContact bool
}
