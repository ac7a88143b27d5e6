// Package signal relays opaque WebRTC signaling payloads between the two
// sides of a call. SDP offers and answers and ICE candidates pass through
// untouched; the relay only decides whether forwarding is still meaningful
// given the live call session between the participants.
package signal

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/presence"
	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

const (
	kindOffer  = "offer"
	kindAnswer = "answer"
	kindICE    = "ice"

	statusRelayed = "relayed"
	statusOffline = "offline"
	statusStale   = "stale"
)

// SessionStates exposes the live call session state between two users
type SessionStates interface {
	SessionState(a, b uuid.UUID) (string, bool)
}

// Relay forwards signaling payloads to the counterparty's connection
type Relay struct {
	registry *presence.Registry
	sessions SessionStates
}

// NewRelay creates a signaling relay gated on the given session source
func NewRelay(registry *presence.Registry, sessions SessionStates) *Relay {
	return &Relay{
		registry: registry,
		sessions: sessions,
	}
}

// RelayOffer pushes the incoming-call event carrying the caller's SDP offer
// to the receiver. Called right after the session is created; a failure means
// the receiver dropped in between and the caller's dial cannot proceed.
func (r *Relay) RelayOffer(callerID uuid.UUID, callID uuid.UUID, payload domain.CallUserPayload) error {
	delivered := r.registry.SendTo(payload.To, domain.EventIncomingCall, domain.IncomingCallPayload{
		From:     callerID,
		Offer:    payload.Offer,
		CallType: payload.CallType,
		CallID:   callID,
	})
	if !delivered {
		metrics.SignalRelayTotal.WithLabelValues(kindOffer, statusOffline).Inc()
		return apperrors.RecipientOfflineError()
	}
	metrics.SignalRelayTotal.WithLabelValues(kindOffer, statusRelayed).Inc()
	return nil
}

// RelayAnswer pushes the receiver's SDP answer back to the caller. Only
// forwarded while the session between the two is accepted; anything else is
// a stale answer and is dropped.
func (r *Relay) RelayAnswer(receiverID, callerID uuid.UUID, answer json.RawMessage) bool {
	state, ok := r.sessions.SessionState(receiverID, callerID)
	if !ok || state != constants.CallStatusAccepted {
		metrics.SignalRelayTotal.WithLabelValues(kindAnswer, statusStale).Inc()
		return false
	}

	delivered := r.registry.SendTo(callerID, domain.EventCallAccepted, domain.CallAcceptedPayload{
		Answer: answer,
	})
	if !delivered {
		metrics.SignalRelayTotal.WithLabelValues(kindAnswer, statusOffline).Inc()
		logger.Warn("answer relay target offline", zap.String("caller_id", callerID.String()))
		return false
	}
	metrics.SignalRelayTotal.WithLabelValues(kindAnswer, statusRelayed).Inc()
	return true
}

// RelayCandidate forwards one ICE candidate to the counterparty. Candidates
// only flow while a session exists between the two users; late candidates
// from a torn-down call are dropped silently.
func (r *Relay) RelayCandidate(fromID, toID uuid.UUID, candidate json.RawMessage) bool {
	if _, ok := r.sessions.SessionState(fromID, toID); !ok {
		metrics.SignalRelayTotal.WithLabelValues(kindICE, statusStale).Inc()
		return false
	}

	delivered := r.registry.SendTo(toID, domain.EventIceCandidate, domain.CandidatePayload{
		Candidate: candidate,
	})
	if !delivered {
		metrics.SignalRelayTotal.WithLabelValues(kindICE, statusOffline).Inc()
		return false
	}
	metrics.SignalRelayTotal.WithLabelValues(kindICE, statusRelayed).Inc()
	return true
}
