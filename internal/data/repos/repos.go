package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/chatstream-backend/internal/data/repos/chat"
	"github.com/yungbote/chatstream-backend/internal/data/repos/user"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo

type ConversationRepo = chat.ConversationRepo
type TurnRepo = chat.TurnRepo

func NewUserRepo(db *gorm.DB, log *logger.Logger) UserRepo { return user.NewUserRepo(db, log) }

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return chat.NewConversationRepo(db, log)
}

func NewTurnRepo(db *gorm.DB, log *logger.Logger) TurnRepo { return chat.NewTurnRepo(db, log) }
