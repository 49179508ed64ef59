package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/chatstream-backend/internal/app"
	"github.com/yungbote/chatstream-backend/internal/platform/envutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/platform/shutdown"
)

func main() {
	// Logger
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration...")
	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Error("Config load failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx, log, cfg)
	if err != nil {
		log.Error("App init failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Error("Server failed", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
