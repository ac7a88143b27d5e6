// Package call implements the in-memory call session lifecycle. A session
// tracks one live 1:1 call between an unordered pair of users from the moment
// the caller dials until a terminal status is reached, and mirrors every
// transition into the durable call history.
package call

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/presence"
	"chatlink-backend/pkg/constants"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

// CallStore persists call history records
type CallStore interface {
	Create(ctx context.Context, call *domain.Call) error
	UpdateStatus(ctx context.Context, callID uuid.UUID, status string, duration int) error
}

// key is the canonical unordered pair identity for a session. Both
// participants resolve to the same key regardless of who dialed.
type key struct {
	lo uuid.UUID
	hi uuid.UUID
}

func pairKey(a, b uuid.UUID) key {
	lo, hi := domain.SortPair(a, b)
	return key{lo: lo, hi: hi}
}

// session holds the live state of one call. All fields after the identity
// block are guarded by mu; transitions are serialized per session.
type session struct {
	mu sync.Mutex

	key        key
	callID     uuid.UUID
	callerID   uuid.UUID
	receiverID uuid.UUID
	callType   string

	state     string
	createdAt time.Time
}

// other returns the counterparty of the given participant
func (s *session) other(userID uuid.UUID) uuid.UUID {
	if userID == s.callerID {
		return s.receiverID
	}
	return s.callerID
}

func terminal(state string) bool {
	switch state {
	case constants.CallStatusRejected, constants.CallStatusMissed, constants.CallStatusEnded:
		return true
	}
	return false
}

// Manager owns every live call session. At most one session exists per user
// pair; a user may appear in several sessions with different counterparties.
type Manager struct {
	mu       sync.Mutex
	sessions map[key]*session

	store    CallStore
	registry *presence.Registry
	now      func() time.Time
}

// NewManager creates a call session manager backed by the given history store
func NewManager(store CallStore, registry *presence.Registry) *Manager {
	return NewManagerWithClock(store, registry, time.Now)
}

// NewManagerWithClock is NewManager with an injectable clock
func NewManagerWithClock(store CallStore, registry *presence.Registry, now func() time.Time) *Manager {
	return &Manager{
		sessions: make(map[key]*session),
		store:    store,
		registry: registry,
		now:      now,
	}
}

// Initiate starts a new call from caller to receiver and returns the server
// assigned call ID. It fails fast when the receiver is offline or when the
// pair already has a live session, and undoes the session when the history
// record cannot be written.
func (m *Manager) Initiate(ctx context.Context, callerID, receiverID uuid.UUID, callType string) (uuid.UUID, error) {
	if callerID == receiverID {
		return uuid.Nil, apperrors.InvalidInputError("Cannot call yourself")
	}
	if callType != constants.CallTypeAudio && callType != constants.CallTypeVideo {
		return uuid.Nil, apperrors.InvalidInputError("Unknown call type")
	}
	if !m.registry.IsOnline(receiverID) {
		return uuid.Nil, apperrors.RecipientOfflineError()
	}

	sess := &session{
		key:        pairKey(callerID, receiverID),
		callID:     uuid.New(),
		callerID:   callerID,
		receiverID: receiverID,
		callType:   callType,
		state:      constants.CallStatusRinging,
		createdAt:  m.now(),
	}

	m.mu.Lock()
	if _, exists := m.sessions[sess.key]; exists {
		m.mu.Unlock()
		metrics.CallSessionConflictTotal.Inc()
		return uuid.Nil, apperrors.SessionConflictError()
	}
	m.sessions[sess.key] = sess
	active := len(m.sessions)
	m.mu.Unlock()
	metrics.CallSessionsActive.Set(float64(active))

	if err := m.store.Create(ctx, &domain.Call{
		CallID:     sess.callID,
		CallerID:   callerID,
		ReceiverID: receiverID,
		CallType:   callType,
		Status:     constants.CallStatusRinging,
		StartedAt:  sess.createdAt,
	}); err != nil {
		m.remove(sess)
		logger.Error("failed to persist call record",
			zap.String("call_id", sess.callID.String()),
			zap.Error(err))
		return uuid.Nil, apperrors.StoreUnavailableError(err)
	}

	return sess.callID, nil
}

// Answer transitions a ringing session to accepted. The history record is
// updated before the in-memory state flips, so a store failure leaves the
// session ringing and the answer can be retried. The bool reports whether the
// transition happened; a stale or duplicate answer is swallowed as false.
func (m *Manager) Answer(ctx context.Context, receiverID, callerID uuid.UUID) (bool, error) {
	sess, ok := m.lookup(receiverID, callerID)
	if !ok {
		metrics.CallStaleEventTotal.WithLabelValues(domain.EventAnswerCall).Inc()
		return false, nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != constants.CallStatusRinging || receiverID != sess.receiverID {
		metrics.CallStaleEventTotal.WithLabelValues(domain.EventAnswerCall).Inc()
		return false, nil
	}

	if err := m.store.UpdateStatus(ctx, sess.callID, constants.CallStatusAccepted, 0); err != nil {
		logger.Error("failed to persist call answer",
			zap.String("call_id", sess.callID.String()),
			zap.Error(err))
		return false, apperrors.StoreUnavailableError(err)
	}

	sess.state = constants.CallStatusAccepted
	return true, nil
}

// Reject declines a ringing call. Only the receiver can reject; the caller is
// notified with a call-rejected push. Stale rejects are swallowed.
func (m *Manager) Reject(ctx context.Context, receiverID, callerID uuid.UUID) bool {
	sess, ok := m.lookup(receiverID, callerID)
	if !ok {
		metrics.CallStaleEventTotal.WithLabelValues(domain.EventRejectCall).Inc()
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != constants.CallStatusRinging || receiverID != sess.receiverID {
		metrics.CallStaleEventTotal.WithLabelValues(domain.EventRejectCall).Inc()
		return false
	}

	m.finalize(ctx, sess, constants.CallStatusRejected, 0)
	m.registry.SendTo(callerID, domain.EventCallRejected, nil)
	return true
}

// End terminates a session from either side. The recorded duration is the
// whole seconds elapsed since the call started ringing, whether or not it was
// ever answered. The counterparty gets a call-ended push.
func (m *Manager) End(ctx context.Context, userID, peerID uuid.UUID) bool {
	sess, ok := m.lookup(userID, peerID)
	if !ok {
		metrics.CallStaleEventTotal.WithLabelValues(domain.EventEndCall).Inc()
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if terminal(sess.state) {
		metrics.CallStaleEventTotal.WithLabelValues(domain.EventEndCall).Inc()
		return false
	}

	duration := int(m.now().Sub(sess.createdAt) / time.Second)

	m.finalize(ctx, sess, constants.CallStatusEnded, duration)
	m.registry.SendTo(sess.other(userID), domain.EventCallEnded, nil)
	return true
}

// TerminateFor tears down every live session the given user participates in.
// Called on disconnect: a ringing call becomes missed, an accepted call ends
// with the seconds elapsed since it started ringing, and the surviving side
// gets a call-ended push.
func (m *Manager) TerminateFor(ctx context.Context, userID uuid.UUID) {
	m.mu.Lock()
	involved := make([]*session, 0, 1)
	for _, sess := range m.sessions {
		if sess.callerID == userID || sess.receiverID == userID {
			involved = append(involved, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range involved {
		sess.mu.Lock()
		if terminal(sess.state) {
			sess.mu.Unlock()
			continue
		}

		status := constants.CallStatusMissed
		duration := 0
		if sess.state == constants.CallStatusAccepted {
			status = constants.CallStatusEnded
			duration = int(m.now().Sub(sess.createdAt) / time.Second)
		}

		m.finalize(ctx, sess, status, duration)
		survivor := sess.other(userID)
		sess.mu.Unlock()

		m.registry.SendTo(survivor, domain.EventCallEnded, nil)
	}
}

// SessionState reports the current state of the session between two users,
// if any. Used by the signaling relay to gate what it forwards.
func (m *Manager) SessionState(a, b uuid.UUID) (string, bool) {
	sess, ok := m.lookup(a, b)
	if !ok {
		return "", false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state, true
}

// ActiveCount returns the number of live sessions
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) lookup(a, b uuid.UUID) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[pairKey(a, b)]
	return sess, ok
}

// finalize moves a session to a terminal status, persists the outcome and
// drops it from the table. Must be called with sess.mu held. Persistence is
// best effort here: the session is gone either way, a failed update only
// leaves the history record behind.
func (m *Manager) finalize(ctx context.Context, sess *session, status string, duration int) {
	sess.state = status

	if err := m.store.UpdateStatus(ctx, sess.callID, status, duration); err != nil {
		logger.Error("failed to persist call outcome",
			zap.String("call_id", sess.callID.String()),
			zap.String("status", status),
			zap.Error(err))
	}

	m.remove(sess)

	metrics.CallsFinishedTotal.WithLabelValues(sess.callType, status).Inc()
	if status == constants.CallStatusEnded && duration > 0 {
		metrics.CallDurationSeconds.WithLabelValues(sess.callType).Observe(float64(duration))
	}
}

// remove drops a session from the table if it is still the registered one
func (m *Manager) remove(sess *session) {
	m.mu.Lock()
	if current, ok := m.sessions[sess.key]; ok && current == sess {
		delete(m.sessions, sess.key)
	}
	active := len(m.sessions)
	m.mu.Unlock()
	metrics.CallSessionsActive.Set(float64(active))
}
