package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9000"
jwt_secret_key: from-yaml
db:
  driver: sqlite
  sqlite_path: /tmp/chat.db
llm:
  api_key: id.secret
  model: glm-4-flash
context:
  budget_tokens: 4096
cache:
  backend: memory
  max_entries: 50
allowed_origins:
  - https://chat.example.com
`), 0o600))

	t.Setenv("CHAT_CONFIG_PATH", path)
	t.Setenv("LLM_MODEL", "glm-4-plus")
	t.Setenv("CACHE_TTL_SECONDS", "60")

	cfg, err := LoadConfig(logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, "from-yaml", cfg.JWTSecretKey)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "glm-4-plus", cfg.LLM.Model)
	assert.Equal(t, 4096, cfg.Context.BudgetTokens)
	assert.Equal(t, 500, cfg.Context.ReserveTokens)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, 60, cfg.Cache.TTLSeconds)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 600, cfg.LLM.ReadTimeoutSeconds)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Setenv("CHAT_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := LoadConfig(logger.NewNop())
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	assert.Contains(t, err.Error(), "LLM_API_KEY")
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.JWTSecretKey = "s"
	cfg.LLM.APIKey = "id.secret"
	cfg.DB.Driver = "sqlite"
	require.NoError(t, cfg.Validate())

	cfg.Cache.Backend = "redis"
	assert.ErrorContains(t, cfg.Validate(), "REDIS_ADDR")

	cfg.Cache.Backend = "memcached"
	assert.ErrorContains(t, cfg.Validate(), "unknown CACHE_BACKEND")
}
