package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, rows []*types.Conversation) ([]*types.Conversation, error)
	// GetByID returns nil without error when the conversation does not exist.
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Conversation, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Conversation, error)
	// RecordMessage names an unnamed conversation after msg, stores msg as the last message and
	// advances updated_at to at. updated_at never moves backwards.
	RecordMessage(dbc dbctx.Context, id uuid.UUID, msg string, at time.Time) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: log.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, rows []*types.Conversation) ([]*types.Conversation, error) {
	if len(rows) == 0 {
		return []*types.Conversation{}, nil
	}
	if err := dbc.Conn(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *conversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Conversation
	err := dbc.Conn(r.db).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *conversationRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Conversation, error) {
	if len(ids) == 0 {
		return []*types.Conversation{}, nil
	}
	var out []*types.Conversation
	if err := dbc.Conn(r.db).
		Model(&types.Conversation{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Conversation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []*types.Conversation
	if err := dbc.Conn(r.db).
		Model(&types.Conversation{}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conversationRepo) RecordMessage(dbc dbctx.Context, id uuid.UUID, msg string, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	at = at.UTC().Truncate(time.Microsecond)
	res := dbc.Conn(r.db).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":         gorm.Expr("CASE WHEN name = '' OR name = ? THEN ? ELSE name END", types.DefaultConversationName, types.NameFromMessage(msg)),
			"last_message": msg,
			"updated_at":   gorm.Expr("CASE WHEN updated_at < ? THEN ? ELSE updated_at END", at, at),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("conversation %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}
