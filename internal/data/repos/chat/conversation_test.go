package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/data/repos/testutil"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
)

func TestConversationRepo_CreateAndGet(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewConversationRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, ctx, db, "alice")
	created, err := repo.Create(dbc, []*types.Conversation{{UserID: owner.ID}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || created[0].ID == uuid.Nil {
		t.Fatalf("Create: unexpected result: %+v", created)
	}

	got, err := repo.GetByID(dbc, created[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Name != types.DefaultConversationName || got.UserID != owner.ID {
		t.Fatalf("GetByID: unexpected result: %+v", got)
	}

	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil {
		t.Fatalf("GetByID (missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("GetByID (missing): expected nil, got %+v", missing)
	}
}

func TestConversationRepo_RecordMessage(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewConversationRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, ctx, db, "bob")
	conv := testutil.SeedConversation(t, ctx, db, owner.ID)

	first := time.Now().UTC().Add(time.Minute)
	if err := repo.RecordMessage(dbc, conv.ID, "How do I configure the retry budget?", first); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	got, err := repo.GetByID(dbc, conv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "How do I configure t..." {
		t.Fatalf("name=%q", got.Name)
	}
	if got.LastMessage != "How do I configure the retry budget?" {
		t.Fatalf("last_message=%q", got.LastMessage)
	}
	if !got.UpdatedAt.Equal(first.Truncate(time.Microsecond)) {
		t.Fatalf("updated_at=%v want %v", got.UpdatedAt, first)
	}

	// A later message never renames; an older timestamp never rewinds updated_at.
	if err := repo.RecordMessage(dbc, conv.ID, "thanks", first.Add(-time.Hour)); err != nil {
		t.Fatalf("RecordMessage (second): %v", err)
	}
	got, err = repo.GetByID(dbc, conv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "How do I configure t..." {
		t.Fatalf("renamed to %q", got.Name)
	}
	if got.LastMessage != "thanks" {
		t.Fatalf("last_message=%q", got.LastMessage)
	}
	if !got.UpdatedAt.Equal(first.Truncate(time.Microsecond)) {
		t.Fatalf("updated_at moved backwards: %v", got.UpdatedAt)
	}

	if err := repo.RecordMessage(dbc, uuid.New(), "x", first); err == nil {
		t.Fatalf("RecordMessage on missing conversation: expected error")
	}
}

func TestConversationRepo_ListByUser(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.New(ctx)
	repo := NewConversationRepo(db, testutil.Logger(t))

	owner := testutil.SeedUser(t, ctx, db, "carol")
	other := testutil.SeedUser(t, ctx, db, "dave")
	older := testutil.SeedConversation(t, ctx, db, owner.ID)
	newer := testutil.SeedConversation(t, ctx, db, owner.ID)
	testutil.SeedConversation(t, ctx, db, other.ID)

	if err := repo.RecordMessage(dbc, newer.ID, "latest", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}

	list, err := repo.ListByUser(dbc, owner.ID, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListByUser: expected 2, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("ListByUser: wrong order: %s, %s", list[0].ID, list[1].ID)
	}

	byIDs, err := repo.GetByIDs(dbc, []uuid.UUID{older.ID, uuid.New()})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(byIDs) != 1 || byIDs[0].ID != older.ID {
		t.Fatalf("GetByIDs: unexpected result: %+v", byIDs)
	}
}
