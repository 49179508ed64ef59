package app

import (
	"context"

	"gorm.io/gorm"

	apphttp "github.com/yungbote/chatstream-backend/internal/http"
	httpH "github.com/yungbote/chatstream-backend/internal/http/handlers"
	httpMW "github.com/yungbote/chatstream-backend/internal/http/middleware"
	"github.com/yungbote/chatstream-backend/internal/observability"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Chat    *httpH.ChatHandler
	Session *httpH.SessionHandler
	History *httpH.HistoryHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(dbPing(db)),
		Chat:    httpH.NewChatHandler(log, services.Chat, seconds(cfg.SSEHeartbeatSeconds)),
		Session: httpH.NewSessionHandler(services.Sessions),
		History: httpH.NewHistoryHandler(services.History),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware, metrics *observability.Metrics) *apphttp.Server {
	serviceName := ""
	if cfg.Tracing.Enabled {
		serviceName = cfg.Tracing.ServiceName
	}
	return apphttp.NewServer(cfg.HTTPAddr, apphttp.RouterConfig{
		Log:            log,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,
		Metrics:        metrics,
		AuthMiddleware: middleware.Auth,
		ChatHandler:    handlers.Chat,
		SessionHandler: handlers.Session,
		HistoryHandler: handlers.History,
		HealthHandler:  handlers.Health,
	})
}

func dbPing(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
