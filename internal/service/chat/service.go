// Package chat implements 1:1 messaging: persisting messages, pushing them to
// the receiver's live connection, seen bookkeeping and the conversation
// sidebar.
package chat

import (
	"context"
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

// MessageStore persists chat messages
type MessageStore interface {
	Create(ctx context.Context, message *domain.Message) error
	ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*domain.Message, error)
	BulkMarkSeen(ctx context.Context, senderID, receiverID uuid.UUID) (int, error)
	CountUnseen(ctx context.Context, senderID, receiverID uuid.UUID) (int, error)
}

// MediaStore uploads message attachments and returns their public URL
type MediaStore interface {
	UploadImage(ctx context.Context, ownerID uuid.UUID, data string) (string, error)
}

// UserStore reads the user directory
type UserStore interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	ListOthers(ctx context.Context, excludeID uuid.UUID) ([]*domain.User, error)
}

// Service handles chat business logic
type Service struct {
	messages MessageStore
	media    MediaStore
	users    UserStore
	registry *presence.Registry
}

// NewService creates a new chat service
func NewService(messages MessageStore, media MediaStore, users UserStore, registry *presence.Registry) *Service {
	return &Service{
		messages: messages,
		media:    media,
		users:    users,
		registry: registry,
	}
}

// SendMessage persists a message and pushes it to the receiver's connection
// if one exists. An image payload is uploaded to object storage first and the
// message carries the resulting URL. When the receiver currently has the
// sender's conversation open the message is stored as already seen.
func (s *Service) SendMessage(ctx context.Context, senderID, receiverID uuid.UUID, input *domain.MessageCreate) (*domain.Message, error) {
	if input.Text == "" && input.Image == "" {
		return nil, apperrors.ValidationError("Message must carry text or an image")
	}
	if len(input.Text) > constants.MaxMessageLength {
		return nil, apperrors.ValidationError("Message text too long")
	}
	if len(input.Image) > constants.MaxImagePayloadBytes {
		return nil, apperrors.ValidationError("Image payload too large")
	}

	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		return nil, err
	}

	var imageURL string
	if input.Image != "" {
		url, err := s.media.UploadImage(ctx, senderID, input.Image)
		if err != nil {
			return nil, apperrors.StorageError(err)
		}
		imageURL = url
	}

	message := &domain.Message{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       input.Text,
		Image:      imageURL,
		CreatedAt:  time.Now(),
	}

	// A receiver staring at this conversation has seen the message the moment
	// it lands, so skip the mark-seen round trip
	if conn, online := s.registry.Lookup(receiverID); online && conn.OpenConversation() == senderID {
		message.Seen = true
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}

	messageType := "text"
	if imageURL != "" {
		messageType = "image"
	}
	metrics.MessagesCreatedTotal.WithLabelValues(messageType).Inc()

	if s.registry.SendTo(receiverID, domain.EventNewMessage, message) {
		metrics.DeliveryPushTotal.WithLabelValues("delivered").Inc()
	} else {
		metrics.DeliveryPushTotal.WithLabelValues("offline").Inc()
	}

	// A pre-marked message was seen on arrival; tell the sender right away
	if message.Seen {
		s.registry.SendTo(senderID, domain.EventMessagesSeen, domain.SeenByPayload{By: receiverID})
	}

	return message, nil
}

// GetConversation returns the newest messages between the viewer and a peer
func (s *Service) GetConversation(ctx context.Context, viewerID, peerID uuid.UUID, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	return s.messages.ListConversation(ctx, viewerID, peerID, limit)
}

// MarkSeen marks every unseen message from senderID to viewerID as seen and
// notifies the sender's connection. Returns the number of messages flipped.
func (s *Service) MarkSeen(ctx context.Context, viewerID, senderID uuid.UUID) (int, error) {
	count, err := s.messages.BulkMarkSeen(ctx, senderID, viewerID)
	if err != nil {
		return 0, err
	}

	s.registry.SendTo(senderID, domain.EventMessagesSeen, domain.SeenByPayload{By: viewerID})
	return count, nil
}

// Sidebar returns every other user with the viewer's unseen message count.
// A failed count degrades to zero rather than failing the whole sidebar.
func (s *Service) Sidebar(ctx context.Context, viewerID uuid.UUID) ([]*domain.SidebarUser, error) {
	users, err := s.users.ListOthers(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	entries := make([]*domain.SidebarUser, 0, len(users))
	for _, user := range users {
		count, err := s.messages.CountUnseen(ctx, user.UserID, viewerID)
		if err != nil {
			logger.Warn("unseen count failed",
				zap.String("user_id", user.UserID.String()),
				zap.Error(err))
			count = 0
		}

		entry := &domain.SidebarUser{
			UserID:      user.UserID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			UnseenCount: count,
		}
		if user.AvatarURL != nil {
			entry.AvatarURL = *user.AvatarURL
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
