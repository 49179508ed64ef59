package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TurnSourceCache = "cache"
	TurnSourceModel = "model"
)

// Turn is one persisted question/answer exchange. Rows are insert-only.
type Turn struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	ConversationID uuid.UUID `gorm:"type:uuid;column:session_id;not null;index:idx_chat_history_session_created,priority:1" json:"session_id"`

	Question string `gorm:"column:question;type:text;not null" json:"question"`
	Answer   string `gorm:"column:answer;type:text;not null" json:"answer"`

	// Meta records how the answer was produced: source (cache|model), model, context_messages.
	Meta datatypes.JSONMap `gorm:"column:meta" json:"meta,omitempty"`

	CreatedAt time.Time `gorm:"not null;index;index:idx_chat_history_session_created,priority:2" json:"created_at"`
}

func (Turn) TableName() string { return "chat_history" }

func (t *Turn) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
