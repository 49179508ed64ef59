package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/data/repos"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

// TranscriptMessage is one side of a recorded turn as shown to the client.
type TranscriptMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionService interface {
	Create(dbc dbctx.Context) (*types.Conversation, error)
	List(dbc dbctx.Context, limit int) ([]*types.Conversation, error)
	// Messages returns the conversation's turns oldest first as alternating user and assistant
	// messages.
	Messages(dbc dbctx.Context, conversationID uuid.UUID) ([]TranscriptMessage, error)
}

type sessionService struct {
	log           *logger.Logger
	conversations repos.ConversationRepo
	turns         repos.TurnRepo
}

func NewSessionService(baseLog *logger.Logger, conversations repos.ConversationRepo, turns repos.TurnRepo) SessionService {
	return &sessionService{
		log:           baseLog.With("service", "SessionService"),
		conversations: conversations,
		turns:         turns,
	}
}

func (s *sessionService) Create(dbc dbctx.Context) (*types.Conversation, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	created, err := s.conversations.Create(dbc, []*types.Conversation{{
		UserID: rd.UserID,
		Name:   types.DefaultConversationName,
	}})
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	s.log.Debug("conversation created", "conversation_id", created[0].ID, "user_id", rd.UserID)
	return created[0], nil
}

func (s *sessionService) List(dbc dbctx.Context, limit int) ([]*types.Conversation, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	return s.conversations.ListByUser(dbc, rd.UserID, limit)
}

func (s *sessionService) Messages(dbc dbctx.Context, conversationID uuid.UUID) ([]TranscriptMessage, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	conv, err := s.conversations.GetByID(dbc, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !conv.OwnedBy(rd.UserID) {
		return nil, ErrInvalidConversation
	}
	turns, err := s.turns.ListByConversation(dbc, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	out := make([]TranscriptMessage, 0, len(turns)*2)
	for _, t := range turns {
		out = append(out,
			TranscriptMessage{Role: types.RoleUser, Content: t.Question, Timestamp: t.CreatedAt},
			TranscriptMessage{Role: types.RoleAssistant, Content: t.Answer, Timestamp: t.CreatedAt},
		)
	}
	return out, nil
}
