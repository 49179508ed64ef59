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

type HistoryHandler struct {
	history services.HistoryService
}

func NewHistoryHandler(history services.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// GET /api/history?page=0&size=20&userId=...
func (h *HistoryHandler) List(c *gin.Context) {
	page, size := 0, services.DefaultHistoryPageSize
	if v := strings.TrimSpace(c.Query("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_page", err)
			return
		}
		page = n
	}
	if v := strings.TrimSpace(c.Query("size")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_size", err)
			return
		}
		size = n
	}
	var userID *uuid.UUID
	if v := strings.TrimSpace(c.Query("userId")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
			return
		}
		userID = &id
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	out, err := h.history.Page(dbc, page, size, userID)
	if err != nil {
		respondServiceError(c, err, "list_history_failed")
		return
	}
	response.RespondOK(c, out)
}
