package presence

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatlink-backend/internal/domain"
	"chatlink-backend/pkg/logger"
	"chatlink-backend/pkg/metrics"
)

// Conn is one user's live connection as seen by the coordination layer.
// Send must not block; a full or dead connection returns an error and the
// caller treats the user as offline.
type Conn interface {
	Send(event string, payload interface{}) error
	// OpenConversation reports which peer's conversation the client currently
	// has open, or uuid.Nil. Used to pre-mark delivered messages as seen.
	OpenConversation() uuid.UUID
}

// Mirror reflects presence changes into an external store (Redis).
// Best-effort: errors are logged, never propagated.
type Mirror interface {
	SetUserOnline(ctx context.Context, userID uuid.UUID) error
	SetUserOffline(ctx context.Context, userID uuid.UUID) error
}

// Registry tracks which users hold a live connection. Exactly one entry per
// user: a newer connection replaces the old one (last-writer-wins). Every
// register/unregister broadcasts the current online snapshot to all clients.
type Registry struct {
	mu     sync.RWMutex
	conns  map[uuid.UUID]Conn
	mirror Mirror
}

// NewRegistry creates a new presence registry. mirror may be nil.
func NewRegistry(mirror Mirror) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]Conn),
		mirror: mirror,
	}
}

// Register records conn as userID's live connection, replacing any prior one.
// The replaced connection is considered stale and is not notified.
func (r *Registry) Register(ctx context.Context, userID uuid.UUID, conn Conn) {
	r.mu.Lock()
	if _, replaced := r.conns[userID]; replaced {
		metrics.PresenceReplacedConnectionTotal.Inc()
	}
	r.conns[userID] = conn
	metrics.PresenceOnlineUsers.Set(float64(len(r.conns)))
	r.mu.Unlock()

	if r.mirror != nil {
		if err := r.mirror.SetUserOnline(ctx, userID); err != nil {
			logger.Warn("presence mirror update failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	r.broadcastSnapshot()
}

// Unregister removes userID's entry, but only if conn is still the registered
// connection. A stale connection's late disconnect must not evict the newer
// one. Returns whether an entry was removed.
func (r *Registry) Unregister(ctx context.Context, userID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	metrics.PresenceOnlineUsers.Set(float64(len(r.conns)))
	r.mu.Unlock()

	if r.mirror != nil {
		if err := r.mirror.SetUserOffline(ctx, userID); err != nil {
			logger.Warn("presence mirror update failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}

	r.broadcastSnapshot()
	return true
}

// Lookup resolves a user's live connection
func (r *Registry) Lookup(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[userID]
	return conn, ok
}

// IsOnline reports whether the user holds a live connection
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// OnlineIDs returns a snapshot of all online user IDs
func (r *Registry) OnlineIDs() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// SendTo delivers an event to userID's connection. Returns false when the
// user is offline or the send fails; a failed send demotes the target to
// offline from the caller's point of view.
func (r *Registry) SendTo(userID uuid.UUID, event string, payload interface{}) bool {
	conn, ok := r.Lookup(userID)
	if !ok {
		return false
	}

	if err := conn.Send(event, payload); err != nil {
		logger.Debug("presence send failed, treating recipient as offline",
			zap.String("user_id", userID.String()),
			zap.String("event", event),
			zap.Error(err))
		return false
	}
	return true
}

// Broadcast sends an event to every connected client
func (r *Registry) Broadcast(event string, payload interface{}) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(event, payload); err != nil {
			// Dead connections surface through their own read loop; skip.
			continue
		}
	}
}

// broadcastSnapshot pushes the current online-ids list to everyone.
// At-least-once: concurrent register/unregister may produce duplicate or
// slightly stale snapshots, which clients tolerate.
func (r *Registry) broadcastSnapshot() {
	metrics.PresenceSnapshotBroadcastTotal.Inc()
	r.Broadcast(domain.EventOnlineUsers, r.OnlineIDs())
}
