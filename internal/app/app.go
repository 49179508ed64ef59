package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/chatstream-backend/internal/data/db"
	apphttp "github.com/yungbote/chatstream-backend/internal/http"
	"github.com/yungbote/chatstream-backend/internal/observability"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

const shutdownGrace = 30 * time.Second

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Server   *apphttp.Server
	Metrics  *observability.Metrics

	dbService    *db.Service
	shutdownOTel func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownOTel := observability.InitOTel(ctx, log, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.Endpoint,
		Headers:     observability.ParseHeaders(cfg.Tracing.Headers),
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})

	var metrics *observability.Metrics
	if cfg.MetricsEnabled {
		metrics = observability.Init(log)
	}

	dbService, err := db.NewService(db.Config{
		Driver:      cfg.DB.Driver,
		DatabaseURL: cfg.DB.DatabaseURL,
		SQLitePath:  cfg.DB.SQLitePath,
	}, log)
	if err != nil {
		_ = shutdownOTel(ctx)
		return nil, fmt.Errorf("init db: %w", err)
	}
	theDB := dbService.DB()
	if err := db.AutoMigrateAll(theDB); err != nil {
		_ = dbService.Close()
		_ = shutdownOTel(ctx)
		return nil, fmt.Errorf("db automigrate: %w", err)
	}

	reposet := wireRepos(theDB, log)
	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = dbService.Close()
		_ = shutdownOTel(ctx)
		return nil, err
	}
	serviceset := wireServices(log, cfg, reposet, clients, metrics)
	handlerset := wireHandlers(log, cfg, theDB, serviceset)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, handlerset, middleware, metrics)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Server:       server,
		Metrics:      metrics,
		dbService:    dbService,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then drains the server and in-flight answer tasks.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("Server listening", "addr", a.Cfg.HTTPAddr)
		errCh <- a.Server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.Log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.Services.Pool.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain answer tasks: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.shutdownOTel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.shutdownOTel(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
