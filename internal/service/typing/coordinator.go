package typing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/presence"
	"chatlink-backend/pkg/constants"
	"chatlink-backend/pkg/metrics"
)

// pendingTyping is one sender's live typing indicator: the target it was
// announced to and the cancellable auto-stop timer.
type pendingTyping struct {
	to    uuid.UUID
	timer *time.Timer
	seq   uint64
}

// Coordinator debounces typing indicators. The first keystroke toward a peer
// forwards user-typing; further keystrokes within the quiet window only reset
// the auto-stop timer, so the receiver never sees duplicate storms. When the
// window elapses without a keystroke, user-stop-typing is emitted on the
// sender's behalf.
type Coordinator struct {
	registry *presence.Registry
	quiet    time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID]*pendingTyping
	seq     uint64
}

// NewCoordinator creates a typing coordinator with the default quiet window
func NewCoordinator(registry *presence.Registry) *Coordinator {
	return NewCoordinatorWithWindow(registry, constants.TypingQuietWindow)
}

// NewCoordinatorWithWindow creates a typing coordinator with a custom quiet
// window. Used by tests to keep timing deterministic.
func NewCoordinatorWithWindow(registry *presence.Registry, quiet time.Duration) *Coordinator {
	return &Coordinator{
		registry: registry,
		quiet:    quiet,
		pending:  make(map[uuid.UUID]*pendingTyping),
	}
}

// OnTyping handles a keystroke from `from` toward `to`. Best-effort: if the
// target is offline the event is dropped, never queued.
func (c *Coordinator) OnTyping(from, to uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pending[from]; ok {
		if p.to == to {
			// Same conversation: reset the window, no duplicate event
			p.timer.Stop()
			p.seq = c.nextSeq()
			p.timer = c.startTimer(from, to, p.seq)
			return
		}
		// Switched conversations: close out the previous target first
		p.timer.Stop()
		c.sendStop(from, p.to, "stop")
		delete(c.pending, from)
	}

	c.registry.SendTo(to, domain.EventUserTyping, domain.FromPayload{From: from})
	metrics.TypingEventsTotal.WithLabelValues("typing").Inc()

	seq := c.nextSeq()
	c.pending[from] = &pendingTyping{
		to:    to,
		timer: c.startTimer(from, to, seq),
		seq:   seq,
	}
}

// OnStopTyping handles an explicit stop from the sender. If the window
// already expired the auto-stop was sent and this is a no-op.
func (c *Coordinator) OnStopTyping(from, to uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[from]
	if !ok || p.to != to {
		return
	}

	p.timer.Stop()
	delete(c.pending, from)
	c.sendStop(from, to, "stop")
}

// Forget cancels any pending indicator for a disconnecting sender
func (c *Coordinator) Forget(from uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pending[from]; ok {
		p.timer.Stop()
		delete(c.pending, from)
	}
}

// startTimer arms the auto-stop for one quiet window. The sequence number
// guards against a timer that fired while being reset.
func (c *Coordinator) startTimer(from, to uuid.UUID, seq uint64) *time.Timer {
	return time.AfterFunc(c.quiet, func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		p, ok := c.pending[from]
		if !ok || p.seq != seq {
			return
		}
		delete(c.pending, from)
		c.sendStop(from, to, "auto_stop")
	})
}

// sendStop emits user-stop-typing; caller holds c.mu
func (c *Coordinator) sendStop(from, to uuid.UUID, kind string) {
	c.registry.SendTo(to, domain.EventUserStopTyping, domain.FromPayload{From: from})
	metrics.TypingEventsTotal.WithLabelValues(kind).Inc()
}

func (c *Coordinator) nextSeq() uint64 {
	c.seq++
	return c.seq
}
