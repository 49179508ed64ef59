package chat

import (
	"testing"

	"github.com/google/uuid"
)

func TestNameFromMessage(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello", "Hello"},
		{"exactly twenty chars", "exactly twenty chars"},
		{"this message is longer than twenty", "this message is long..."},
		{"你好你好你好你好你好你好你好你好你好你好你好", "你好你好你好你好你好你好你好你好你好你好..."},
	}
	for _, tc := range cases {
		if got := NameFromMessage(tc.in); got != tc.want {
			t.Fatalf("NameFromMessage(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestConversationOwnedBy(t *testing.T) {
	owner := uuid.New()
	c := &Conversation{ID: uuid.New(), UserID: owner}
	if !c.OwnedBy(owner) {
		t.Fatalf("expected owner match")
	}
	if c.OwnedBy(uuid.New()) {
		t.Fatalf("expected stranger mismatch")
	}
	if c.OwnedBy(uuid.Nil) {
		t.Fatalf("nil user must never own a conversation")
	}
	var missing *Conversation
	if missing.OwnedBy(owner) {
		t.Fatalf("nil conversation has no owner")
	}
}
