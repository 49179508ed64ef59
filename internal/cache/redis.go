package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

const DefaultRedisPrefix = "chatstream:answer:"

// Redis is an AnswerCache shared by every replica. Each hit resets the key TTL with GETEX.
// The entry bound is left to the server's maxmemory policy.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *logger.Logger
}

var _ AnswerCache = (*Redis)(nil)

func NewRedis(client *redis.Client, prefix string, ttl time.Duration, log *logger.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, log: log.With("cache", "RedisAnswerCache")}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis: missing address")
	}
	c := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

// Get treats backend errors as misses.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.GetEx(ctx, r.prefix+key, r.ttl).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		r.log.Warn("answer cache read failed", "error", err)
		return "", false
	}
	return val, true
}

func (r *Redis) Put(ctx context.Context, key, answer string) {
	if err := r.client.Set(ctx, r.prefix+key, answer, r.ttl).Err(); err != nil {
		r.log.Warn("answer cache write failed", "error", err)
	}
}
