package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/data/repos"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/platform/tokenizer"
)

const (
	DefaultContextBudget = 2048
	DefaultReserveTokens = 500
	DefaultFetchWindow   = 20
)

type ContextBuilderConfig struct {
	// FetchWindow is how many of the newest turns are considered.
	FetchWindow int
	// ReserveTokens is charged once per included turn on top of its question and answer.
	ReserveTokens int
}

// ContextBuilder selects the most recent turns of a conversation that fit a token budget.
type ContextBuilder interface {
	Build(ctx context.Context, conversationID uuid.UUID, budget int) ([]types.ContextMessage, error)
}

type contextBuilder struct {
	log     *logger.Logger
	turns   repos.TurnRepo
	counter tokenizer.Counter
	cfg     ContextBuilderConfig
}

func NewContextBuilder(baseLog *logger.Logger, turns repos.TurnRepo, counter tokenizer.Counter, cfg ContextBuilderConfig) ContextBuilder {
	if cfg.FetchWindow <= 0 {
		cfg.FetchWindow = DefaultFetchWindow
	}
	if cfg.ReserveTokens < 0 {
		cfg.ReserveTokens = 0
	}
	return &contextBuilder{
		log:     baseLog.With("service", "ContextBuilder"),
		turns:   turns,
		counter: counter,
		cfg:     cfg,
	}
}

// Build walks turns newest to oldest and stops at the first one that would exceed budget.
// The result is oldest first with each question followed by its answer.
func (b *contextBuilder) Build(ctx context.Context, conversationID uuid.UUID, budget int) ([]types.ContextMessage, error) {
	recent, err := b.turns.ListRecentByConversation(dbctx.New(ctx), conversationID, b.cfg.FetchWindow)
	if err != nil {
		return nil, fmt.Errorf("load recent turns: %w", err)
	}

	used := 0
	kept := 0
	for _, t := range recent {
		cost := b.counter.Count(t.Question) + b.counter.Count(t.Answer) + b.cfg.ReserveTokens
		if used+cost > budget {
			break
		}
		used += cost
		kept++
	}

	out := make([]types.ContextMessage, 0, kept*2)
	for i := kept - 1; i >= 0; i-- {
		t := recent[i]
		out = append(out,
			types.ContextMessage{Role: types.RoleUser, Content: t.Question},
			types.ContextMessage{Role: types.RoleAssistant, Content: t.Answer},
		)
	}
	b.log.Debug("context built", "conversation_id", conversationID, "turns", kept, "tokens", used)
	return out, nil
}
