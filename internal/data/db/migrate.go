package db

import (
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.Conversation{},
		&types.Turn{},
	)
}
