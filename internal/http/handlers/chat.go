package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatstream-backend/internal/http/response"
	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/services"
	"github.com/yungbote/chatstream-backend/internal/sse"
)

type ChatHandler struct {
	log       *logger.Logger
	chat      services.ChatStreamService
	heartbeat time.Duration
}

func NewChatHandler(log *logger.Logger, chat services.ChatStreamService, heartbeat time.Duration) *ChatHandler {
	return &ChatHandler{log: log.With("handler", "ChatHandler"), chat: chat, heartbeat: heartbeat}
}

type streamReq struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// GET /api/chat/stream?question=...&sessionId=...
func (h *ChatHandler) Stream(c *gin.Context) {
	h.stream(c, c.Query("question"), c.Query("sessionId"))
}

// POST /api/chat/stream
func (h *ChatHandler) StreamPost(c *gin.Context) {
	var req streamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	h.stream(c, req.Question, req.SessionID)
}

func (h *ChatHandler) stream(c *gin.Context, question, sessionID string) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", services.ErrUnauthenticated)
		return
	}

	em := h.chat.Handle(c.Request.Context(), question, rd.UserID, sessionID)
	// Rejections are known before the first byte, so they go out as plain JSON errors.
	if err := em.Err(); services.IsValidation(err) {
		response.RespondAPIError(c, err, http.StatusBadRequest, "invalid_request")
		return
	}
	sse.Serve(c.Writer, c.Request, em, h.heartbeat, h.log)
}
