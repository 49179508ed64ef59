package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yungbote/chatstream-backend/internal/data/repos"
	"github.com/yungbote/chatstream-backend/internal/data/repos/testutil"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
	"github.com/yungbote/chatstream-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatstream-backend/internal/sse"
)

type fakeLLM struct {
	mu      sync.Mutex
	deltas  []string
	err     error
	calls   int
	history []types.ContextMessage
	asked   string
}

func (f *fakeLLM) Model() string { return "fake-model" }

func (f *fakeLLM) StreamChat(ctx context.Context, history []types.ContextMessage, question string, onDelta func(string)) (string, error) {
	f.mu.Lock()
	f.calls++
	f.history = history
	f.asked = question
	deltas, err := f.deltas, f.err
	f.mu.Unlock()

	full := ""
	for _, d := range deltas {
		full += d
		onDelta(d)
	}
	return full, err
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingTurnRepo struct {
	repos.TurnRepo
}

var errDiskFull = errors.New("disk full")

func (failingTurnRepo) Create(dbc dbctx.Context, rows []*types.Turn) ([]*types.Turn, error) {
	return nil, errDiskFull
}

func withUser(id uuid.UUID, role string) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: id, Role: role})
}

func collect(t *testing.T, em *sse.Emitter) []sse.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := em.Collect(ctx)
	require.NoError(t, err)
	return events
}

func chunks(events []sse.Event) []string {
	var out []string
	for _, ev := range events {
		if ev.Kind == sse.EventChunk {
			out = append(out, ev.Data)
		}
	}
	return out
}

func terminals(events []sse.Event) []sse.Event {
	var out []sse.Event
	for _, ev := range events {
		if ev.Kind != sse.EventChunk {
			out = append(out, ev)
		}
	}
	return out
}

func countTurns(t *testing.T, db *gorm.DB, convID uuid.UUID) []*types.Turn {
	t.Helper()
	var rows []*types.Turn
	require.NoError(t, db.Where("session_id = ?", convID).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func seedTurns(t *testing.T, db *gorm.DB, conv *types.Conversation, n int, q, a string) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		testutil.SeedTurn(t, context.Background(), db, conv, q+string(rune('0'+i)), a+string(rune('0'+i)), base.Add(time.Duration(i)*time.Minute))
	}
}
