package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observed(opts Options) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return FromZap(zap.New(core), opts), logs
}

func TestRedaction(t *testing.T) {
	log, logs := observed(Options{Redact: true, HashSalt: "salt"})

	log.Info("asked",
		"question", "what is my password?",
		"api_key", "id.secret",
		"user_id", "4b1c",
		"bearer", "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxMjM0NTY3ODkwIn0.sig",
		"question_len", 20,
	)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, redacted, fields["question"])
	assert.Equal(t, redacted, fields["api_key"])
	assert.Equal(t, redacted, fields["bearer"])
	assert.EqualValues(t, 20, fields["question_len"])

	hashed, ok := fields["user_id"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(hashed, "hash:"))
	assert.NotContains(t, hashed, "4b1c")
}

func TestRedactionOff(t *testing.T) {
	log, logs := observed(Options{})
	log.With("user_id", "4b1c").Info("asked", "question", "hi")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "4b1c", fields["user_id"])
	assert.Equal(t, "hi", fields["question"])
}

func TestWithKeepsRedaction(t *testing.T) {
	log, logs := observed(Options{Redact: true})
	log.With("service", "ChatStreamService").Info("answer", "answer", "secret text")
	assert.Equal(t, redacted, logs.All()[0].ContextMap()["answer"])
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_REDACTION_ENABLED", "off")
	t.Setenv("LOG_HASH_SALT", " pepper ")

	opts := OptionsFromEnv()
	assert.Equal(t, zap.WarnLevel, opts.Level)
	assert.False(t, opts.Redact)
	assert.Equal(t, "pepper", opts.HashSalt)
}
