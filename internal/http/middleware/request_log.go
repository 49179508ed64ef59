package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

// RequestLogger emits one line per request once the handler returns. For SSE routes that is
// when the stream closes, so duration_ms covers the whole answer.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", strings.ToUpper(c.Request.Method),
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		fields = append(fields, requestIdentity(c)...)
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

func requestIdentity(c *gin.Context) []interface{} {
	ctx := c.Request.Context()
	out := ctxutil.LogFields(ctx)
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		out = append(out, "user_id", rd.UserID.String())
	}
	conv := c.Query("sessionId")
	if conv == "" {
		conv = c.Param("id")
	}
	if conv != "" {
		out = append(out, "conversation_id", conv)
	}
	return out
}
