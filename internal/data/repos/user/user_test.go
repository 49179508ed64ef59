package user

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/chatstream-backend/internal/data/repos/testutil"
	types "github.com/yungbote/chatstream-backend/internal/domain"
	"github.com/yungbote/chatstream-backend/internal/pkg/dbctx"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	created, err := repo.Create(dbc, []*types.User{
		{ID: uuid.New(), Username: "userrepo"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("Create: expected 1 user, got %d", len(created))
	}
	if created[0].Role != types.UserRoleUser {
		t.Fatalf("Create: expected default role, got %q", created[0].Role)
	}

	gotByIDs, err := repo.GetByIDs(dbc, []uuid.UUID{created[0].ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(gotByIDs) != 1 || gotByIDs[0].ID != created[0].ID {
		t.Fatalf("GetByIDs: unexpected result: %+v", gotByIDs)
	}

	byName, err := repo.GetByUsername(dbc, "userrepo")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if byName == nil || byName.ID != created[0].ID {
		t.Fatalf("GetByUsername: unexpected result: %+v", byName)
	}

	missing, err := repo.GetByUsername(dbc, "nobody")
	if err != nil {
		t.Fatalf("GetByUsername (missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("GetByUsername (missing): expected nil")
	}
}
