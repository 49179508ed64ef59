package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

const (
	DefaultMaxEntries = 1000
	DefaultTTL        = time.Hour
)

// Local is an in-process AnswerCache bounded by entry count with least-recently-used eviction
// and an expiry that every hit pushes forward.
type Local struct {
	c   *ttlcache.Cache[string, string]
	log *logger.Logger
}

var _ AnswerCache = (*Local)(nil)

func NewLocal(maxEntries int, ttl time.Duration, log *logger.Logger) *Local {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	c := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithCapacity[string, string](uint64(maxEntries)),
	)
	l := &Local{c: c, log: log.With("cache", "LocalAnswerCache")}
	c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, string]) {
		if reason == ttlcache.EvictionReasonCapacityReached {
			l.log.Debug("answer cache full, evicted entry")
		}
	})
	return l
}

// Start runs the expiry janitor until Stop is called.
func (l *Local) Start() { go l.c.Start() }

func (l *Local) Stop() { l.c.Stop() }

func (l *Local) Get(_ context.Context, key string) (string, bool) {
	item := l.c.Get(key)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

func (l *Local) Put(_ context.Context, key, answer string) {
	l.c.Set(key, answer, ttlcache.DefaultTTL)
}

func (l *Local) Len() int { return l.c.Len() }
