package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/chatstream-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:       uuid.New(),
		Username: username,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedConversation(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID) *types.Conversation {
	tb.Helper()
	c := &types.Conversation{
		ID:     uuid.New(),
		UserID: userID,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed conversation: %v", err)
	}
	return c
}

func SeedTurn(tb testing.TB, ctx context.Context, tx *gorm.DB, c *types.Conversation, question, answer string, at time.Time) *types.Turn {
	tb.Helper()
	t := &types.Turn{
		ID:             uuid.New(),
		UserID:         c.UserID,
		ConversationID: c.ID,
		Question:       question,
		Answer:         answer,
		CreatedAt:      at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		tb.Fatalf("seed turn: %v", err)
	}
	return t
}
