package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	redact        *redactor
}

// Options controls level and field redaction. Redaction is off in the zero value.
type Options struct {
	Level    zapcore.Level
	Redact   bool
	HashSalt string
}

// OptionsFromEnv reads LOG_LEVEL, LOG_REDACTION_ENABLED (default on) and LOG_HASH_SALT.
func OptionsFromEnv() Options {
	opts := Options{Level: zap.DebugLevel, Redact: true}
	if raw := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); raw != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(raw)); err == nil {
			opts.Level = lvl
		}
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
	case "0", "false", "no", "off":
		opts.Redact = false
	}
	opts.HashSalt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	return opts
}

// New builds a zap logger for mode ("prod"/"production", anything else is development) with
// options taken from the environment.
func New(mode string) (*Logger, error) {
	return NewWithOptions(mode, OptionsFromEnv())
}

func NewWithOptions(mode string, opts Options) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(opts.Level)
	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return FromZap(zapLogger, opts), nil
}

// FromZap wraps an existing zap logger, e.g. one built over an observer core in tests.
func FromZap(z *zap.Logger, opts Options) *Logger {
	l := &Logger{SugaredLogger: z.Sugar()}
	if opts.Redact {
		l.redact = &redactor{salt: opts.HashSalt}
	}
	return l
}

func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.redact.fields(keysAndValues)...)
}
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.redact.fields(keysAndValues)...)
}
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.redact.fields(keysAndValues)...)
}
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.redact.fields(keysAndValues)...)
}
func (l *Logger) Fatal(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Fatalw(msg, l.redact.fields(keysAndValues)...)
}
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.redact.fields(keysAndValues)...),
		redact:        l.redact,
	}
}

// redactor scrubs credentials and user content from key/value pairs. A nil redactor passes
// fields through untouched.
type redactor struct {
	salt string
}

func (r *redactor) fields(kv []interface{}) []interface{} {
	if r == nil || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := toString(kv[i])
		out = append(out, key, r.value(strings.ToLower(key), kv[i+1]))
	}
	return out
}

func (r *redactor) value(key string, val interface{}) interface{} {
	switch {
	case key == "":
		return val
	case isSecretKey(key), isContentKey(key):
		return redacted
	case strings.HasSuffix(key, "user_id"), key == "requester_id":
		return r.hash(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = r.value(strings.ToLower(strings.TrimSpace(k)), inner)
		}
		return out
	case string:
		if looksLikeJWT(v) {
			return redacted
		}
	}
	return val
}

func (r *redactor) hash(val interface{}) string {
	raw := toString(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	_, _ = h.Write([]byte(r.salt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func isSecretKey(key string) bool {
	for _, needle := range []string{"token", "authorization", "password", "secret", "api_key", "apikey"} {
		if strings.Contains(key, needle) {
			return true
		}
	}
	return false
}

// Question and answer bodies are user content; callers log their lengths instead.
func isContentKey(key string) bool {
	return key == "question" || key == "answer" || key == "delta"
}

func looksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
