package signal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/presence"
	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	m.Run()
}

type sent struct {
	event   string
	payload interface{}
}

type fakeConn struct {
	mu    sync.Mutex
	sends []sent
}

func (c *fakeConn) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sends = append(c.sends, sent{event: event, payload: payload})
	return nil
}

func (c *fakeConn) OpenConversation() uuid.UUID { return uuid.Nil }

func (c *fakeConn) last() (sent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sends) == 0 {
		return sent{}, false
	}
	return c.sends[len(c.sends)-1], true
}

// stubSessions reports a fixed state for every pair
type stubSessions struct {
	state  string
	exists bool
}

func (s *stubSessions) SessionState(a, b uuid.UUID) (string, bool) {
	return s.state, s.exists
}

func setup(t *testing.T, sessions SessionStates) (*Relay, uuid.UUID, uuid.UUID, *fakeConn, *fakeConn) {
	t.Helper()
	registry := presence.NewRegistry(nil)
	relay := NewRelay(registry, sessions)

	callerID, receiverID := uuid.New(), uuid.New()
	caller, receiver := &fakeConn{}, &fakeConn{}
	registry.Register(context.Background(), callerID, caller)
	registry.Register(context.Background(), receiverID, receiver)

	return relay, callerID, receiverID, caller, receiver
}

func TestRelayOffer(t *testing.T) {
	relay, callerID, receiverID, _, receiver := setup(t, &stubSessions{state: constants.CallStatusRinging, exists: true})
	callID := uuid.New()
	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	err := relay.RelayOffer(callerID, callID, domain.CallUserPayload{
		To:       receiverID,
		Offer:    offer,
		CallType: constants.CallTypeVideo,
	})

	assert.NoError(t, err)
	got, ok := receiver.last()
	assert.True(t, ok)
	assert.Equal(t, domain.EventIncomingCall, got.event)

	payload := got.payload.(domain.IncomingCallPayload)
	assert.Equal(t, callerID, payload.From)
	assert.Equal(t, callID, payload.CallID)
	assert.Equal(t, constants.CallTypeVideo, payload.CallType)
	assert.Equal(t, offer, payload.Offer)
}

func TestRelayOfferReceiverGone(t *testing.T) {
	relay, callerID, _, _, _ := setup(t, &stubSessions{state: constants.CallStatusRinging, exists: true})

	err := relay.RelayOffer(callerID, uuid.New(), domain.CallUserPayload{
		To:       uuid.New(), // never registered
		Offer:    json.RawMessage(`{}`),
		CallType: constants.CallTypeAudio,
	})

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeRecipientOffline))
}

func TestRelayAnswer(t *testing.T) {
	relay, callerID, receiverID, caller, _ := setup(t, &stubSessions{state: constants.CallStatusAccepted, exists: true})
	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)

	delivered := relay.RelayAnswer(receiverID, callerID, answer)

	assert.True(t, delivered)
	got, ok := caller.last()
	assert.True(t, ok)
	assert.Equal(t, domain.EventCallAccepted, got.event)
	assert.Equal(t, answer, got.payload.(domain.CallAcceptedPayload).Answer)
}

func TestRelayAnswerStaleSession(t *testing.T) {
	relay, callerID, receiverID, caller, _ := setup(t, &stubSessions{exists: false})

	delivered := relay.RelayAnswer(receiverID, callerID, json.RawMessage(`{}`))

	assert.False(t, delivered)
	_, ok := caller.last()
	assert.False(t, ok)
}

func TestRelayAnswerWhileRingingDropped(t *testing.T) {
	relay, callerID, receiverID, caller, _ := setup(t, &stubSessions{state: constants.CallStatusRinging, exists: true})

	delivered := relay.RelayAnswer(receiverID, callerID, json.RawMessage(`{}`))

	assert.False(t, delivered)
	_, ok := caller.last()
	assert.False(t, ok)
}

func TestRelayCandidate(t *testing.T) {
	relay, callerID, receiverID, _, receiver := setup(t, &stubSessions{state: constants.CallStatusAccepted, exists: true})
	candidate := json.RawMessage(`{"candidate":"candidate:0 1 UDP"}`)

	delivered := relay.RelayCandidate(callerID, receiverID, candidate)

	assert.True(t, delivered)
	got, ok := receiver.last()
	assert.True(t, ok)
	assert.Equal(t, domain.EventIceCandidate, got.event)
	assert.Equal(t, candidate, got.payload.(domain.CandidatePayload).Candidate)
}

func TestRelayCandidateBothDirections(t *testing.T) {
	relay, callerID, receiverID, caller, _ := setup(t, &stubSessions{state: constants.CallStatusRinging, exists: true})

	delivered := relay.RelayCandidate(receiverID, callerID, json.RawMessage(`{}`))

	assert.True(t, delivered)
	got, _ := caller.last()
	assert.Equal(t, domain.EventIceCandidate, got.event)
}

func TestRelayCandidateNoSession(t *testing.T) {
	relay, callerID, receiverID, _, receiver := setup(t, &stubSessions{exists: false})

	delivered := relay.RelayCandidate(callerID, receiverID, json.RawMessage(`{}`))

	assert.False(t, delivered)
	_, ok := receiver.last()
	assert.False(t, ok)
}

func TestRelayCandidateTargetOffline(t *testing.T) {
	relay, callerID, _, _, _ := setup(t, &stubSessions{state: constants.CallStatusAccepted, exists: true})

	delivered := relay.RelayCandidate(callerID, uuid.New(), json.RawMessage(`{}`))

	assert.False(t, delivered)
}
