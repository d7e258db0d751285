package models

import "time"

// Activation is the journal entry written for every relay dispatch attempt.
type Activation struct {
	ID          string      `bson:"_id" json:"id"`
	SessionID   string      `bson:"session_id" json:"session_id"`
	Identity    string      `bson:"identity" json:"identity"`
	Target      string      `bson:"target" json:"target"`
	RelayID     string      `bson:"relay_id" json:"relay_id"`
	Code        int64       `bson:"code" json:"code"`
	Outcome     OutcomeKind `bson:"outcome" json:"outcome"`
	WaitSeconds int64       `bson:"wait_seconds,omitempty" json:"wait_seconds,omitempty"`
	Error       string      `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt   time.Time   `bson:"created_at" json:"created_at"`
}

// OutcomeFailed marks journal entries whose dispatch never produced a response code.
const OutcomeFailed OutcomeKind = "failed"
