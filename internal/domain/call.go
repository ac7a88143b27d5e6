package domain

import (
	"time"

	"github.com/google/uuid"
)

// Call represents the durable call-history record. It is an append-only audit
// log of a call session: created when the call starts ringing, updated exactly
// once more when the session reaches a terminal status.
type Call struct {
	CallID     uuid.UUID `json:"callId"`
	CallerID   uuid.UUID `json:"caller"`
	ReceiverID uuid.UUID `json:"receiver"`
	CallType   string    `json:"type"`     // audio, video
	Status     string    `json:"status"`   // ringing, accepted, rejected, missed, ended
	Duration   int       `json:"duration"` // seconds, 0 until the call ends
	StartedAt  time.Time `json:"createdAt"`
}
