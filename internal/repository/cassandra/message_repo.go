package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"chatlink-backend/internal/domain"
)

// MessageRepository handles message storage in Cassandra.
// Messages are partitioned by the canonical pair id so one partition holds the
// whole 1:1 conversation, clustered newest first.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// Create inserts a new message
func (r *MessageRepository) Create(ctx context.Context, message *domain.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}

	query := `
		INSERT INTO messages (
			pair_id, created_at, message_id, sender_id, receiver_id,
			text, media_ref, seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		message.PairID(),
		message.CreatedAt,
		message.ID,
		message.SenderID,
		message.ReceiverID,
		message.Text,
		message.Image,
		message.Seen,
	).WithContext(ctx).Exec()

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// ListConversation retrieves messages between two users, newest first
func (r *MessageRepository) ListConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*domain.Message, error) {
	query := `
		SELECT message_id, sender_id, receiver_id, text, media_ref, seen, created_at
		FROM messages
		WHERE pair_id = ?
		LIMIT ?
	`

	iter := r.session.Query(query, domain.PairID(a, b), limit).WithContext(ctx).Iter()

	var messages []*domain.Message
	for {
		message := &domain.Message{}
		if !iter.Scan(
			&message.ID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Text,
			&message.Image,
			&message.Seen,
			&message.CreatedAt,
		) {
			break
		}
		messages = append(messages, message)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return messages, nil
}

// BulkMarkSeen flips the seen flag on every unseen message sent by senderID to
// receiverID. Cassandra has no conditional multi-row update, so the unseen rows
// are collected first and updated in a single logged batch.
func (r *MessageRepository) BulkMarkSeen(ctx context.Context, senderID, receiverID uuid.UUID) (int, error) {
	pairID := domain.PairID(senderID, receiverID)

	selectQuery := `
		SELECT created_at, message_id, sender_id, seen
		FROM messages
		WHERE pair_id = ?
	`

	iter := r.session.Query(selectQuery, pairID).WithContext(ctx).Iter()

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	updateQuery := `UPDATE messages SET seen = true WHERE pair_id = ? AND created_at = ? AND message_id = ?`

	count := 0
	var scanCreatedAt time.Time
	var scanMessageID, scanSenderID uuid.UUID
	var scanSeen bool

	for iter.Scan(&scanCreatedAt, &scanMessageID, &scanSenderID, &scanSeen) {
		if scanSeen || scanSenderID != senderID {
			continue
		}
		batch.Query(updateQuery, pairID, scanCreatedAt, scanMessageID)
		count++
	}

	if err := iter.Close(); err != nil {
		return 0, fmt.Errorf("failed to scan unseen messages: %w", err)
	}

	if count == 0 {
		return 0, nil
	}

	if err := r.session.ExecuteBatch(batch); err != nil {
		return 0, fmt.Errorf("failed to mark messages seen: %w", err)
	}

	return count, nil
}

// CountUnseen counts unseen messages from senderID to receiverID
func (r *MessageRepository) CountUnseen(ctx context.Context, senderID, receiverID uuid.UUID) (int, error) {
	// Partition-local scan; pair partitions stay small enough for this.
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE pair_id = ? AND sender_id = ? AND seen = false
		ALLOW FILTERING
	`

	var count int
	err := r.session.Query(query, domain.PairID(senderID, receiverID), senderID).WithContext(ctx).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unseen messages: %w", err)
	}

	return count, nil
}
