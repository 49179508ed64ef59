package app

import (
	"github.com/yungbote/chatstream-backend/internal/jobs/worker"
	"github.com/yungbote/chatstream-backend/internal/observability"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/services"
)

type Services struct {
	Auth     services.AuthService
	Context  services.ContextBuilder
	LLM      services.LLMStreamer
	Chat     services.ChatStreamService
	Sessions services.SessionService
	History  services.HistoryService

	Pool *worker.Pool
}

func wireServices(log *logger.Logger, cfg Config, reposet Repos, clients Clients, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")

	pool := worker.NewPool(cfg.WorkerMaxConcurrency, log)
	builder := services.NewContextBuilder(log, reposet.Turn, clients.Tokenizer, services.ContextBuilderConfig{
		FetchWindow:   cfg.Context.FetchWindow,
		ReserveTokens: cfg.Context.ReserveTokens,
	})
	llm := services.NewZhipuStreamer(log, clients.LLM, metrics)

	return Services{
		Auth:    services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL()),
		Context: builder,
		LLM:     llm,
		Chat: services.NewChatStreamService(
			log,
			reposet.Conversation,
			reposet.Turn,
			builder,
			clients.Answers,
			llm,
			pool,
			metrics,
			services.ChatStreamConfig{ContextBudget: cfg.Context.BudgetTokens},
		),
		Sessions: services.NewSessionService(log, reposet.Conversation, reposet.Turn),
		History:  services.NewHistoryService(log, reposet.Turn, reposet.Conversation, reposet.User),
		Pool:     pool,
	}
}
