package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a 1:1 chat message entity.
// Maps to the Cassandra messages table, partitioned by the canonical pair id.
// JSON field names follow the realtime wire protocol.
type Message struct {
	ID         uuid.UUID `json:"id" cql:"message_id"`
	SenderID   uuid.UUID `json:"senderId" cql:"sender_id"`
	ReceiverID uuid.UUID `json:"receiverId" cql:"receiver_id"`
	Text       string    `json:"text" cql:"text"`
	Image      string    `json:"image,omitempty" cql:"media_ref"` // object-store URL, empty for text messages
	Seen       bool      `json:"seen" cql:"seen"`
	CreatedAt  time.Time `json:"createdAt" cql:"created_at"`
}

// PairID returns the canonical conversation key for the message's participants
func (m *Message) PairID() string {
	return PairID(m.SenderID, m.ReceiverID)
}

// MessageCreate represents the request body for sending a message
type MessageCreate struct {
	Text  string `json:"text"`
	Image string `json:"image"` // base64 data, uploaded to object storage before persisting
}

// SidebarUser is a user entry for the conversation sidebar, with the number of
// messages from that user the viewer has not seen yet
type SidebarUser struct {
	UserID      uuid.UUID `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	UnseenCount int       `json:"unseenCount"`
}
