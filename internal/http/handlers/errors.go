package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/chatstream-backend/internal/http/response"
	"github.com/yungbote/chatstream-backend/internal/services"
)

func respondServiceError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, services.ErrForbidden):
		response.RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, services.ErrInvalidConversation):
		response.RespondError(c, http.StatusNotFound, "invalid_conversation", err)
	default:
		response.RespondAPIError(c, err, http.StatusInternalServerError, fallbackCode)
	}
}
