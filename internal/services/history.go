package services

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/data/repos"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

const (
	DefaultHistoryPageSize = 20
	MaxHistoryPageSize     = 200
	HistoryTimestampLayout = "2006-01-02 15:04:05"
)

type HistoryRow struct {
	ID                 uuid.UUID `json:"id"`
	Question           string    `json:"question"`
	Answer             string    `json:"answer"`
	SessionID          uuid.UUID `json:"sessionId"`
	Username           string    `json:"username"`
	FormattedTimestamp string    `json:"formattedTimestamp"`
}

type HistoryPage struct {
	Items []HistoryRow `json:"items"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
	Total int64        `json:"total"`
}

type HistoryService interface {
	// Page lists recorded turns newest first. page is zero based. Admins see every user and may
	// narrow to filterUserID; everyone else sees only their own turns.
	Page(dbc dbctx.Context, page, size int, filterUserID *uuid.UUID) (*HistoryPage, error)
}

type historyService struct {
	log           *logger.Logger
	turns         repos.TurnRepo
	conversations repos.ConversationRepo
	users         repos.UserRepo
}

func NewHistoryService(baseLog *logger.Logger, turns repos.TurnRepo, conversations repos.ConversationRepo, users repos.UserRepo) HistoryService {
	return &historyService{
		log:           baseLog.With("service", "HistoryService"),
		turns:         turns,
		conversations: conversations,
		users:         users,
	}
}

func (s *historyService) Page(dbc dbctx.Context, page, size int, filterUserID *uuid.UUID) (*HistoryPage, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultHistoryPageSize
	}
	if size > MaxHistoryPageSize {
		size = MaxHistoryPageSize
	}

	var scope *uuid.UUID
	switch {
	case rd.IsAdmin():
		scope = filterUserID
	case filterUserID != nil && *filterUserID != rd.UserID:
		return nil, ErrForbidden
	default:
		own := rd.UserID
		scope = &own
	}

	rows, total, err := s.turns.ListPage(dbc, scope, page*size, size)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	convIDs := make([]uuid.UUID, 0, len(rows))
	userIDs := make([]uuid.UUID, 0, len(rows))
	seenConv := map[uuid.UUID]bool{}
	seenUser := map[uuid.UUID]bool{}
	for _, t := range rows {
		if !seenConv[t.ConversationID] {
			seenConv[t.ConversationID] = true
			convIDs = append(convIDs, t.ConversationID)
		}
		if !seenUser[t.UserID] {
			seenUser[t.UserID] = true
			userIDs = append(userIDs, t.UserID)
		}
	}

	convs, err := s.conversations.GetByIDs(dbc, convIDs)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	live := make(map[uuid.UUID]bool, len(convs))
	for _, c := range convs {
		live[c.ID] = true
	}
	users, err := s.users.GetByIDs(dbc, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}

	out := &HistoryPage{Items: make([]HistoryRow, 0, len(rows)), Page: page, Size: size, Total: total}
	for _, t := range rows {
		if !live[t.ConversationID] {
			continue
		}
		out.Items = append(out.Items, HistoryRow{
			ID:                 t.ID,
			Question:           t.Question,
			Answer:             t.Answer,
			SessionID:          t.ConversationID,
			Username:           names[t.UserID],
			FormattedTimestamp: t.CreatedAt.Format(HistoryTimestampLayout),
		})
	}
	return out, nil
}
