package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is one chat thread owned by a single user
type Conversation struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID      string    `gorm:"index:idx_conversations_owner_created,priority:1;not null" json:"ownerId"`
	Title        string    `gorm:"not null" json:"title"`
	SystemPrompt string    `gorm:"type:text" json:"systemPrompt"`
	LastMessage  string    `gorm:"type:text" json:"lastMessage"`
	CreatedAt    time.Time `gorm:"index:idx_conversations_owner_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// OwnedBy reports whether uid owns the conversation
func (c *Conversation) OwnedBy(uid string) bool {
	return c.OwnerID == uid
}
