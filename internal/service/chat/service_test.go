package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"chatlink-backend/internal/domain"
	"chatlink-backend/internal/service/presence"
	apperrors "chatlink-backend/pkg/errors"
	"chatlink-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitDefault()
	m.Run()
}

// Mocks
type MockMessageStore struct {
	mock.Mock
}

func (m *MockMessageStore) Create(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageStore) ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, a, b, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageStore) BulkMarkSeen(ctx context.Context, senderID, receiverID uuid.UUID) (int, error) {
	args := m.Called(ctx, senderID, receiverID)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageStore) CountUnseen(ctx context.Context, senderID, receiverID uuid.UUID) (int, error) {
	args := m.Called(ctx, senderID, receiverID)
	return args.Int(0), args.Error(1)
}

type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) UploadImage(ctx context.Context, ownerID uuid.UUID, data string) (string, error) {
	args := m.Called(ctx, ownerID, data)
	return args.String(0), args.Error(1)
}

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserStore) ListOthers(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error) {
	args := m.Called(ctx, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

type fakeConn struct {
	mu       sync.Mutex
	events   []string
	payloads []interface{}
	openPeer uuid.UUID
}

func (c *fakeConn) Send(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *fakeConn) OpenConversation() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openPeer
}

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

type fixture struct {
	service  *Service
	messages *MockMessageStore
	media    *MockMediaStore
	users    *MockUserStore
	registry *presence.Registry

	senderID   uuid.UUID
	receiverID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		messages:   new(MockMessageStore),
		media:      new(MockMediaStore),
		users:      new(MockUserStore),
		registry:   presence.NewRegistry(nil),
		senderID:   uuid.New(),
		receiverID: uuid.New(),
	}
	f.service = NewService(f.messages, f.media, f.users, f.registry)
	return f
}

func (f *fixture) receiverExists() {
	f.users.On("GetByID", mock.Anything, f.receiverID).
		Return(&domain.User{UserID: f.receiverID, Username: "bob"}, nil)
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	f.receiverExists()
	f.messages.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.SenderID == f.senderID &&
			m.ReceiverID == f.receiverID &&
			m.Text == "hello" &&
			!m.Seen
	})).Return(nil).Once()

	message, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Text: "hello"})

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, message.ID)
	assert.WithinDuration(t, time.Now(), message.CreatedAt, time.Second)
	f.messages.AssertExpectations(t)
	f.media.AssertNotCalled(t, "UploadImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessagePushesToOnlineReceiver(t *testing.T) {
	f := newFixture(t)
	f.receiverExists()
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	receiver := &fakeConn{}
	f.registry.Register(context.Background(), f.receiverID, receiver)

	message, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Text: "hello"})

	assert.NoError(t, err)
	assert.False(t, message.Seen)
	assert.Equal(t, 1, receiver.count(domain.EventNewMessage))
}

func TestSendMessagePreMarksSeenForOpenConversation(t *testing.T) {
	f := newFixture(t)
	f.receiverExists()
	f.messages.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.Seen
	})).Return(nil).Once()

	receiver := &fakeConn{openPeer: f.senderID}
	f.registry.Register(context.Background(), f.receiverID, receiver)

	message, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Text: "hello"})

	assert.NoError(t, err)
	assert.True(t, message.Seen)
	f.messages.AssertExpectations(t)
}

func TestSendMessagePreMarkedSeenNotifiesSender(t *testing.T) {
	f := newFixture(t)
	f.receiverExists()
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	receiver := &fakeConn{openPeer: f.senderID}
	sender := &fakeConn{}
	f.registry.Register(context.Background(), f.receiverID, receiver)
	f.registry.Register(context.Background(), f.senderID, sender)

	_, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Text: "hello"})

	assert.NoError(t, err)
	assert.Equal(t, 1, sender.count(domain.EventMessagesSeen))
	assert.Equal(t, 1, receiver.count(domain.EventNewMessage))
}

func TestSendMessageUnseenNoSeenPush(t *testing.T) {
	f := newFixture(t)
	f.receiverExists()
	f.messages.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	// Receiver is online but looking at a different conversation
	receiver := &fakeConn{openPeer: uuid.New()}
	sender := &fakeConn{}
	f.registry.Register(context.Background(), f.receiverID, receiver)
	f.registry.Register(context.Background(), f.senderID, sender)

	message, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Text: "hello"})

	assert.NoError(t, err)
	assert.False(t, message.Seen)
	assert.Equal(t, 0, sender.count(domain.EventMessagesSeen))
}

func TestSendMessageUploadsImage(t *testing.T) {
	f := newFixture(t)
	f.receiverExists()
	f.media.On("UploadImage", mock.Anything, f.senderID, "base64data").
		Return("https://cdn.example.com/img/abc.png", nil).Once()
	f.messages.On("Create", mock.Anything, mock.MatchedBy(func(m *domain.Message) bool {
		return m.Image == "https://cdn.example.com/img/abc.png"
	})).Return(nil).Once()

	message, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Image: "base64data"})

	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/img/abc.png", message.Image)
	f.media.AssertExpectations(t)
}

func TestSendMessageUploadFailure(t *testing.T) {
	f := newFixture(t)
	f.receiverExists()
	f.media.On("UploadImage", mock.Anything, f.senderID, "base64data").
		Return("", errors.New("bucket unavailable")).Once()

	_, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Image: "base64data"})

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorage))
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSendMessageEmptyRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{})

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
	f.users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestSendMessageUnknownReceiver(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByID", mock.Anything, f.receiverID).
		Return(nil, apperrors.UserNotFoundError()).Once()

	_, err := f.service.SendMessage(context.Background(), f.senderID, f.receiverID,
		&domain.MessageCreate{Text: "hello"})

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUserNotFound))
}

func TestGetConversationClampsLimit(t *testing.T) {
	f := newFixture(t)
	f.messages.On("ListConversation", mock.Anything, f.senderID, f.receiverID, 20).
		Return([]*domain.Message{}, nil).Once()
	f.messages.On("ListConversation", mock.Anything, f.senderID, f.receiverID, 100).
		Return([]*domain.Message{}, nil).Once()

	_, err := f.service.GetConversation(context.Background(), f.senderID, f.receiverID, 0)
	assert.NoError(t, err)
	_, err = f.service.GetConversation(context.Background(), f.senderID, f.receiverID, 5000)
	assert.NoError(t, err)

	f.messages.AssertExpectations(t)
}

func TestMarkSeenNotifiesSender(t *testing.T) {
	f := newFixture(t)
	f.messages.On("BulkMarkSeen", mock.Anything, f.senderID, f.receiverID).Return(3, nil).Once()

	sender := &fakeConn{}
	f.registry.Register(context.Background(), f.senderID, sender)

	count, err := f.service.MarkSeen(context.Background(), f.receiverID, f.senderID)

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, sender.count(domain.EventMessagesSeen))
}

func TestMarkSeenOfflineSender(t *testing.T) {
	f := newFixture(t)
	f.messages.On("BulkMarkSeen", mock.Anything, f.senderID, f.receiverID).Return(2, nil).Once()

	count, err := f.service.MarkSeen(context.Background(), f.receiverID, f.senderID)

	assert.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSidebar(t *testing.T) {
	f := newFixture(t)
	viewerID := uuid.New()
	aliceID, bobID := uuid.New(), uuid.New()
	avatar := "https://cdn.example.com/avatars/alice.png"

	f.users.On("ListOthers", mock.Anything, viewerID).Return([]*domain.User{
		{UserID: aliceID, Username: "alice", DisplayName: "Alice", AvatarURL: &avatar},
		{UserID: bobID, Username: "bob", DisplayName: "Bob"},
	}, nil).Once()
	f.messages.On("CountUnseen", mock.Anything, aliceID, viewerID).Return(4, nil).Once()
	f.messages.On("CountUnseen", mock.Anything, bobID, viewerID).Return(0, nil).Once()

	entries, err := f.service.Sidebar(context.Background(), viewerID)

	assert.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 4, entries[0].UnseenCount)
	assert.Equal(t, avatar, entries[0].AvatarURL)
	assert.Equal(t, 0, entries[1].UnseenCount)
	assert.Empty(t, entries[1].AvatarURL)
}

func TestSidebarCountFailureDegradesToZero(t *testing.T) {
	f := newFixture(t)
	viewerID := uuid.New()
	aliceID := uuid.New()

	f.users.On("ListOthers", mock.Anything, viewerID).Return([]*domain.User{
		{UserID: aliceID, Username: "alice", DisplayName: "Alice"},
	}, nil).Once()
	f.messages.On("CountUnseen", mock.Anything, aliceID, viewerID).
		Return(0, errors.New("timeout")).Once()

	entries, err := f.service.Sidebar(context.Background(), viewerID)

	assert.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].UnseenCount)
}
