package chat

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type TurnRepo interface {
	Create(dbc dbctx.Context, rows []*types.Turn) ([]*types.Turn, error)
	// ListRecentByConversation returns at most limit turns, newest first.
	ListRecentByConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.Turn, error)
	// ListByConversation returns every turn of the conversation, oldest first.
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.Turn, error)
	// ListPage returns one page of turns newest first. A nil userID lists every user.
	ListPage(dbc dbctx.Context, userID *uuid.UUID, offset, limit int) ([]*types.Turn, int64, error)
}

type turnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTurnRepo(db *gorm.DB, log *logger.Logger) TurnRepo {
	return &turnRepo{db: db, log: log.With("repo", "TurnRepo")}
}

func (r *turnRepo) Create(dbc dbctx.Context, rows []*types.Turn) ([]*types.Turn, error) {
	if len(rows) == 0 {
		return []*types.Turn{}, nil
	}
	if err := dbc.Conn(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *turnRepo) ListRecentByConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*types.Turn, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	if limit <= 0 {
		return []*types.Turn{}, nil
	}
	var out []*types.Turn
	if err := dbc.Conn(r.db).
		Model(&types.Turn{}).
		Where("session_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *turnRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.Turn, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing session_id")
	}
	var out []*types.Turn
	if err := dbc.Conn(r.db).
		Model(&types.Turn{}).
		Where("session_id = ?", conversationID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *turnRepo) ListPage(dbc dbctx.Context, userID *uuid.UUID, offset, limit int) ([]*types.Turn, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	q := dbc.Conn(r.db).Model(&types.Turn{})
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []*types.Turn
	if err := q.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
