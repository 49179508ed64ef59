package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/http/response"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/services"
)

type SessionHandler struct {
	sessions services.SessionService
}

func NewSessionHandler(sessions services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// POST /api/sessions/new
func (h *SessionHandler) Create(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	conv, err := h.sessions.Create(dbc)
	if err != nil {
		respondServiceError(c, err, "create_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session": conv})
}

// GET /api/sessions?limit=50
func (h *SessionHandler) List(c *gin.Context) {
	limit := 50
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	convs, err := h.sessions.List(dbc, limit)
	if err != nil {
		respondServiceError(c, err, "list_sessions_failed")
		return
	}
	response.RespondOK(c, gin.H{"sessions": convs})
}

// GET /api/sessions/:id/messages
func (h *SessionHandler) Messages(c *gin.Context) {
	h.messages(c, c.Param("id"))
}

// GET /api/chat/history?sessionId=...
func (h *SessionHandler) ChatHistory(c *gin.Context) {
	h.messages(c, c.Query("sessionId"))
}

func (h *SessionHandler) messages(c *gin.Context, rawID string) {
	convID, err := uuid.Parse(strings.TrimSpace(rawID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	msgs, err := h.sessions.Messages(dbc, convID)
	if err != nil {
		respondServiceError(c, err, "list_messages_failed")
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}
