package chat

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultConversationName = "New chat"
	conversationNameRunes   = 20
)

// Conversation is a named sequence of turns owned by one user.
type Conversation struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Name        string `gorm:"column:name;not null;default:'New chat'" json:"name"`
	LastMessage string `gorm:"column:last_message;type:text;not null;default:''" json:"last_message"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Conversation) TableName() string { return "chat_session" }

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Name == "" {
		c.Name = DefaultConversationName
	}
	return nil
}

// OwnedBy reports whether userID owns the conversation.
func (c *Conversation) OwnedBy(userID uuid.UUID) bool {
	return c != nil && userID != uuid.Nil && c.UserID == userID
}

// NameFromMessage derives a display name from the first recorded message.
func NameFromMessage(msg string) string {
	if utf8.RuneCountInString(msg) <= conversationNameRunes {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:conversationNameRunes]) + "..."
}
