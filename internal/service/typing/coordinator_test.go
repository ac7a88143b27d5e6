package typing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/presence"
	"chatlink-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	m.Run()
}

type fakeConn struct {
	mu     sync.Mutex
	events []string
}

func (c *fakeConn) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) OpenConversation() uuid.UUID { return uuid.Nil }

func (c *fakeConn) count(event string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e == event {
			n++
		}
	}
	return n
}

const testQuiet = 50 * time.Millisecond

func newTestSetup(t *testing.T) (*Coordinator, uuid.UUID, uuid.UUID, *fakeConn) {
	t.Helper()
	registry := presence.NewRegistry(nil)
	coordinator := NewCoordinatorWithWindow(registry, testQuiet)

	senderID, receiverID := uuid.New(), uuid.New()
	receiver := &fakeConn{}
	registry.Register(context.Background(), receiverID, receiver)

	return coordinator, senderID, receiverID, receiver
}

func TestOnTypingForwardsOnce(t *testing.T) {
	coordinator, senderID, receiverID, receiver := newTestSetup(t)

	// Three keystrokes inside the quiet window: one user-typing only
	coordinator.OnTyping(senderID, receiverID)
	coordinator.OnTyping(senderID, receiverID)
	coordinator.OnTyping(senderID, receiverID)

	assert.Equal(t, 1, receiver.count(domain.EventUserTyping))
	assert.Equal(t, 0, receiver.count(domain.EventUserStopTyping))
}

func TestAutoStopAfterQuietWindow(t *testing.T) {
	coordinator, senderID, receiverID, receiver := newTestSetup(t)

	coordinator.OnTyping(senderID, receiverID)
	coordinator.OnTyping(senderID, receiverID)

	assert.Eventually(t, func() bool {
		return receiver.count(domain.EventUserStopTyping) == 1
	}, time.Second, 5*time.Millisecond)

	// Exactly one stop, not one per keystroke
	time.Sleep(2 * testQuiet)
	assert.Equal(t, 1, receiver.count(domain.EventUserStopTyping))
	assert.Equal(t, 1, receiver.count(domain.EventUserTyping))
}

func TestKeystrokeResetsWindow(t *testing.T) {
	coordinator, senderID, receiverID, receiver := newTestSetup(t)

	coordinator.OnTyping(senderID, receiverID)
	time.Sleep(testQuiet / 2)
	coordinator.OnTyping(senderID, receiverID)
	time.Sleep(testQuiet / 2)

	// Window was reset by the second keystroke, so no stop yet
	assert.Equal(t, 0, receiver.count(domain.EventUserStopTyping))

	assert.Eventually(t, func() bool {
		return receiver.count(domain.EventUserStopTyping) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestExplicitStopCancelsTimer(t *testing.T) {
	coordinator, senderID, receiverID, receiver := newTestSetup(t)

	coordinator.OnTyping(senderID, receiverID)
	coordinator.OnStopTyping(senderID, receiverID)

	assert.Equal(t, 1, receiver.count(domain.EventUserStopTyping))

	// The timer was cancelled; no second auto-stop
	time.Sleep(2 * testQuiet)
	assert.Equal(t, 1, receiver.count(domain.EventUserStopTyping))
}

func TestTypingToOfflineUserIsDropped(t *testing.T) {
	registry := presence.NewRegistry(nil)
	coordinator := NewCoordinatorWithWindow(registry, testQuiet)

	// Never panics or queues; nothing to assert beyond not blowing up
	coordinator.OnTyping(uuid.New(), uuid.New())
}

func TestSwitchingConversationClosesPrevious(t *testing.T) {
	registry := presence.NewRegistry(nil)
	coordinator := NewCoordinatorWithWindow(registry, testQuiet)

	senderID := uuid.New()
	firstID, secondID := uuid.New(), uuid.New()
	first, second := &fakeConn{}, &fakeConn{}
	registry.Register(context.Background(), firstID, first)
	registry.Register(context.Background(), secondID, second)

	coordinator.OnTyping(senderID, firstID)
	coordinator.OnTyping(senderID, secondID)

	assert.Equal(t, 1, first.count(domain.EventUserTyping))
	assert.Equal(t, 1, first.count(domain.EventUserStopTyping))
	assert.Equal(t, 1, second.count(domain.EventUserTyping))
}

func TestForgetCancelsPendingTimer(t *testing.T) {
	coordinator, senderID, receiverID, receiver := newTestSetup(t)

	coordinator.OnTyping(senderID, receiverID)
	coordinator.Forget(senderID)

	time.Sleep(2 * testQuiet)
	assert.Equal(t, 0, receiver.count(domain.EventUserStopTyping))
}
