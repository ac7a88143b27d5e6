package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Inbound event names (client → server)
const (
	EventTyping       = "typing"
	EventStopTyping   = "stop-typing"
	EventMarkSeen     = "mark-seen"
	EventCallUser     = "call-user"
	EventAnswerCall   = "answer-call"
	EventRejectCall   = "reject-call"
	EventIceCandidate = "ice-candidate"
	EventEndCall      = "end-call"
)

// Outbound event names (server → client)
const (
	EventOnlineUsers    = "onlineUsers"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventMessagesSeen   = "messages-seen"
	EventNewMessage     = "new-message"
	EventIncomingCall   = "incoming-call"
	EventCallAccepted   = "call-accepted"
	EventCallRejected   = "call-rejected"
	EventCallEnded      = "call-ended"
	EventCallFailed     = "call-failed"
)

// TargetPayload is the common inbound shape carrying only a target user
type TargetPayload struct {
	To uuid.UUID `json:"to"`
}

// MarkSeenPayload marks all unseen messages from a sender as seen
type MarkSeenPayload struct {
	From uuid.UUID `json:"from"`
}

// CallUserPayload initiates a call carrying the opaque SDP offer
type CallUserPayload struct {
	To       uuid.UUID       `json:"to"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"callType"`
}

// AnswerCallPayload answers a ringing call with the opaque SDP answer
type AnswerCallPayload struct {
	To     uuid.UUID       `json:"to"`
	Answer json.RawMessage `json:"answer"`
}

// IceCandidatePayload carries an opaque ICE candidate to the counterparty
type IceCandidatePayload struct {
	To        uuid.UUID       `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// FromPayload is the common outbound shape naming the originating user
type FromPayload struct {
	From uuid.UUID `json:"from"`
}

// SeenByPayload notifies a sender that their messages were seen
type SeenByPayload struct {
	By uuid.UUID `json:"by"`
}

// IncomingCallPayload is pushed to the receiver of a new call
type IncomingCallPayload struct {
	From     uuid.UUID       `json:"from"`
	Offer    json.RawMessage `json:"offer"`
	CallType string          `json:"callType"`
	CallID   uuid.UUID       `json:"callId"`
}

// CallAcceptedPayload is pushed to the caller when the receiver answers
type CallAcceptedPayload struct {
	Answer json.RawMessage `json:"answer"`
}

// CandidatePayload is the outbound half of an ICE candidate relay
type CandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
}

// CallFailedPayload tells the caller why an initiation did not go through
type CallFailedPayload struct {
	Reason string `json:"reason"`
}
