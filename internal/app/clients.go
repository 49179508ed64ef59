package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatstream-backend/internal/cache"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/platform/tokenizer"
	"github.com/yungbote/chatstream-backend/internal/platform/zhipu"
)

type Clients struct {
	LLM       *zhipu.Client
	Tokenizer tokenizer.Counter
	Answers   cache.AnswerCache
	Redis     *goredis.Client

	local *cache.Local
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	llm, err := zhipu.New(zhipu.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		ConnectTimeout: seconds(cfg.LLM.ConnectTimeoutSeconds),
		ReadTimeout:    seconds(cfg.LLM.ReadTimeoutSeconds),
		TokenTTL:       seconds(cfg.LLM.TokenTTLSeconds),
	}, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}

	counter, err := tokenizer.NewCL100K()
	if err != nil {
		return Clients{}, fmt.Errorf("init tokenizer: %w", err)
	}

	out := Clients{LLM: llm, Tokenizer: counter}
	ttl := seconds(cfg.Cache.TTLSeconds)
	switch cfg.Cache.Backend {
	case CacheBackendRedis:
		rc, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis answer cache: %w", err)
		}
		out.Redis = rc
		out.Answers = cache.NewRedis(rc, cfg.Cache.RedisPrefix, ttl, log)
	default:
		out.local = cache.NewLocal(cfg.Cache.MaxEntries, ttl, log)
		out.local.Start()
		out.Answers = out.local
	}
	log.Info("Answer cache ready", "backend", cfg.Cache.Backend)
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.local != nil {
		c.local.Stop()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
