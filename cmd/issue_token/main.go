// Command issue_token creates a user when missing and prints a bearer token for it. Login is
// out of scope for the service, so this is how local clients obtain credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/chatstream-backend/internal/app"
	"github.com/yungbote/chatstream-backend/internal/data/db"
	"github.com/yungbote/chatstream-backend/internal/data/repos"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/services"
)

func main() {
	username := flag.String("user", "", "username to issue a token for")
	admin := flag.Bool("admin", false, "create the user with the admin role")
	flag.Parse()

	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(os.Stderr, "usage: issue_token -user <name> [-admin]")
		os.Exit(2)
	}

	log, err := logger.New("development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := app.LoadConfig(log)
	if err != nil {
		log.Error("Config load failed", "error", err)
		os.Exit(1)
	}

	dbService, err := db.NewService(db.Config{
		Driver:      cfg.DB.Driver,
		DatabaseURL: cfg.DB.DatabaseURL,
		SQLitePath:  cfg.DB.SQLitePath,
	}, log)
	if err != nil {
		log.Error("DB init failed", "error", err)
		os.Exit(1)
	}
	defer dbService.Close()
	if err := db.AutoMigrateAll(dbService.DB()); err != nil {
		log.Error("DB automigrate failed", "error", err)
		os.Exit(1)
	}

	userRepo := repos.NewUserRepo(dbService.DB(), log)
	dbc := dbctx.New(context.Background())
	user, err := userRepo.GetByUsername(dbc, strings.TrimSpace(*username))
	if err != nil {
		log.Error("User lookup failed", "error", err)
		os.Exit(1)
	}
	if user == nil {
		role := types.UserRoleUser
		if *admin {
			role = types.UserRoleAdmin
		}
		created, err := userRepo.Create(dbc, []*types.User{{Username: strings.TrimSpace(*username), Role: role}})
		if err != nil {
			log.Error("User create failed", "error", err)
			os.Exit(1)
		}
		user = created[0]
		log.Info("Created user", "username", user.Username, "role", user.Role)
	}

	auth := services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL())
	token, err := auth.IssueAccessToken(user)
	if err != nil {
		log.Error("Token issue failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
