package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies the author of a message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus distinguishes full replies from ones cut short by a stop
type MessageStatus string

const (
	MessageComplete MessageStatus = "complete"
	MessagePartial  MessageStatus = "partial"
)

// Message is a single turn inside a conversation
type Message struct {
	ID             string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConversationID string        `gorm:"index:idx_messages_conversation_ts,priority:1;not null" json:"conversationId"`
	OwnerID        string        `gorm:"index;not null" json:"ownerId"`
	Role           Role          `gorm:"type:varchar(16);not null" json:"role"`
	Content        string        `gorm:"type:text;not null" json:"content"`
	Status         MessageStatus `gorm:"type:varchar(16);default:complete" json:"status"`
	Timestamp      time.Time     `gorm:"index:idx_messages_conversation_ts,priority:2" json:"timestamp"`
}

// BeforeCreate assigns a UUID and timestamp when missing
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.Status == "" {
		m.Status = MessageComplete
	}
	return nil
}
