package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/chatstream-backend/internal/data/repos"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type Repos struct {
	User         repos.UserRepo
	Conversation repos.ConversationRepo
	Turn         repos.TurnRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:         repos.NewUserRepo(db, log),
		Conversation: repos.NewConversationRepo(db, log),
		Turn:         repos.NewTurnRepo(db, log),
	}
}
