package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/http/response"
	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/services"
)

var errMissingToken = errors.New("missing or invalid token")

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth resolves the bearer token into request data or aborts with 401.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, source := bearerToken(c)
		if raw == "" {
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", errMissingToken)
			return
		}
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), raw)
		if err != nil {
			am.log.Debug("Rejected token", "source", source, "error", err)
			response.AbortError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		if rd := ctxutil.GetRequestData(ctx); rd == nil || rd.UserID == uuid.Nil {
			response.AbortError(c, http.StatusForbidden, "forbidden", errors.New("forbidden"))
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// EventSource cannot set headers, so ?token= is accepted ahead of the Authorization header.
func bearerToken(c *gin.Context) (string, string) {
	if tok := strings.TrimSpace(c.Query("token")); tok != "" {
		return tok, "query"
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:]), "header"
	}
	return "", ""
}
