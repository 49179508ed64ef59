package cache

import (
	"context"
	"strings"
)

// AnswerCache maps a normalized (conversation, question) key to a previously produced answer.
// Implementations must be safe for concurrent use. A lost entry only costs a model call.
type AnswerCache interface {
	// Get returns the cached answer and refreshes its expiry.
	Get(ctx context.Context, key string) (string, bool)
	Put(ctx context.Context, key, answer string)
}

// Key builds the cache key for a question asked in a conversation. The question is lowercased
// and trimmed so trivially different phrasings share an entry.
func Key(conversationID, question string) string {
	return conversationID + ":" + strings.ToLower(strings.TrimSpace(question))
}
