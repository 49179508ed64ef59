package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/chatstream-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatstream-backend/internal/http/middleware"
	"github.com/yungbote/chatstream-backend/internal/observability"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics

	AuthMiddleware *httpMW.AuthMiddleware

	ChatHandler    *httpH.ChatHandler
	SessionHandler *httpH.SessionHandler
	HistoryHandler *httpH.HistoryHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Metrics(cfg.Metrics, "/metrics", "/healthcheck"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowedOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Chat (SSE)
		if cfg.ChatHandler != nil {
			protected.GET("/chat/stream", cfg.ChatHandler.Stream)
			protected.POST("/chat/stream", cfg.ChatHandler.StreamPost)
		}

		// Sessions
		if cfg.SessionHandler != nil {
			protected.POST("/sessions/new", cfg.SessionHandler.Create)
			protected.GET("/sessions", cfg.SessionHandler.List)
			protected.GET("/sessions/:id/messages", cfg.SessionHandler.Messages)
			protected.GET("/chat/history", cfg.SessionHandler.ChatHistory)
		}

		// History
		if cfg.HistoryHandler != nil {
			protected.GET("/history", cfg.HistoryHandler.List)
		}
	}

	return r
}
