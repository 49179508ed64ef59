package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/chatstream-backend/internal/cache"
	"github.com/yungbote/chatstream-backend/internal/data/db"
	"github.com/yungbote/chatstream-backend/internal/platform/envutil"
	"github.com/yungbote/chatstream-backend/internal/platform/logger"
	"github.com/yungbote/chatstream-backend/internal/platform/zhipu"
	"github.com/yungbote/chatstream-backend/internal/services"
)

const (
	DefaultConfigPath = "config/config.yaml"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type DBConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type LLMConfig struct {
	BaseURL               string `yaml:"base_url"`
	APIKey                string `yaml:"api_key"`
	Model                 string `yaml:"model"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int    `yaml:"read_timeout_seconds"`
	TokenTTLSeconds       int    `yaml:"token_ttl_seconds"`
}

type ContextConfig struct {
	BudgetTokens  int `yaml:"budget_tokens"`
	ReserveTokens int `yaml:"reserve_tokens"`
	FetchWindow   int `yaml:"fetch_window"`
}

type CacheConfig struct {
	Backend     string `yaml:"backend"`
	MaxEntries  int    `yaml:"max_entries"`
	TTLSeconds  int    `yaml:"ttl_seconds"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Environment string  `yaml:"environment"`
	Endpoint    string  `yaml:"endpoint"`
	Headers     string  `yaml:"headers"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	LogMode        string   `yaml:"log_mode"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	JWTSecretKey          string `yaml:"jwt_secret_key"`
	AccessTokenTTLSeconds int    `yaml:"access_token_ttl_seconds"`

	DB      DBConfig      `yaml:"db"`
	LLM     LLMConfig     `yaml:"llm"`
	Context ContextConfig `yaml:"context"`
	Cache   CacheConfig   `yaml:"cache"`

	WorkerMaxConcurrency int  `yaml:"worker_max_concurrency"`
	SSEHeartbeatSeconds  int  `yaml:"sse_heartbeat_seconds"`
	MetricsEnabled       bool `yaml:"metrics_enabled"`

	Tracing TracingConfig `yaml:"tracing"`
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:              ":8080",
		LogMode:               "development",
		AccessTokenTTLSeconds: 86400,
		DB: DBConfig{
			Driver:     db.DriverPostgres,
			SQLitePath: "chatstream.db",
		},
		LLM: LLMConfig{
			BaseURL:               zhipu.DefaultBaseURL,
			Model:                 zhipu.DefaultModel,
			ConnectTimeoutSeconds: 30,
			ReadTimeoutSeconds:    600,
			TokenTTLSeconds:       3600,
		},
		Context: ContextConfig{
			BudgetTokens:  services.DefaultContextBudget,
			ReserveTokens: services.DefaultReserveTokens,
			FetchWindow:   services.DefaultFetchWindow,
		},
		Cache: CacheConfig{
			Backend:     CacheBackendMemory,
			MaxEntries:  cache.DefaultMaxEntries,
			TTLSeconds:  int(cache.DefaultTTL / time.Second),
			RedisPrefix: cache.DefaultRedisPrefix,
		},
		SSEHeartbeatSeconds: 15,
		MetricsEnabled:      true,
		Tracing: TracingConfig{
			ServiceName: "chatstream-backend",
			SampleRatio: 1,
		},
	}
}

// LoadConfig layers defaults, the YAML file named by CHAT_CONFIG_PATH (or config/config.yaml
// when present), a .env file and finally the process environment.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	path := envutil.String("CHAT_CONFIG_PATH", "")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	if err := loadYAML(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, err
		}
	} else if log != nil {
		log.Info("Loaded config file", "path", path)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.AllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins)

	cfg.JWTSecretKey = envutil.String("JWT_SECRET_KEY", cfg.JWTSecretKey)
	cfg.AccessTokenTTLSeconds = envutil.Int("ACCESS_TOKEN_TTL", cfg.AccessTokenTTLSeconds)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DatabaseURL = envutil.String("DATABASE_URL", cfg.DB.DatabaseURL)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath)

	cfg.LLM.BaseURL = envutil.String("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = envutil.String("LLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = envutil.String("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.ConnectTimeoutSeconds = envutil.Int("LLM_CONNECT_TIMEOUT_SECONDS", cfg.LLM.ConnectTimeoutSeconds)
	cfg.LLM.ReadTimeoutSeconds = envutil.Int("LLM_READ_TIMEOUT_SECONDS", cfg.LLM.ReadTimeoutSeconds)
	cfg.LLM.TokenTTLSeconds = envutil.Int("LLM_TOKEN_TTL_SECONDS", cfg.LLM.TokenTTLSeconds)

	cfg.Context.BudgetTokens = envutil.Int("CONTEXT_BUDGET_TOKENS", cfg.Context.BudgetTokens)
	cfg.Context.ReserveTokens = envutil.Int("CONTEXT_RESERVE_TOKENS", cfg.Context.ReserveTokens)
	cfg.Context.FetchWindow = envutil.Int("CONTEXT_FETCH_WINDOW", cfg.Context.FetchWindow)

	cfg.Cache.Backend = strings.ToLower(envutil.String("CACHE_BACKEND", cfg.Cache.Backend))
	cfg.Cache.MaxEntries = envutil.Int("CACHE_MAX_ENTRIES", cfg.Cache.MaxEntries)
	cfg.Cache.TTLSeconds = envutil.Int("CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds)
	cfg.Cache.RedisAddr = envutil.String("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPrefix = envutil.String("REDIS_CACHE_PREFIX", cfg.Cache.RedisPrefix)

	cfg.WorkerMaxConcurrency = envutil.Int("WORKER_MAX_CONCURRENCY", cfg.WorkerMaxConcurrency)
	cfg.SSEHeartbeatSeconds = envutil.Int("SSE_HEARTBEAT_SECONDS", cfg.SSEHeartbeatSeconds)
	cfg.MetricsEnabled = envutil.Bool("METRICS_ENABLED", cfg.MetricsEnabled)

	cfg.Tracing.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.Environment = envutil.String("OTEL_ENVIRONMENT", cfg.Tracing.Environment)
	cfg.Tracing.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.Headers = envutil.String("OTEL_EXPORTER_OTLP_HEADERS", cfg.Tracing.Headers)
	cfg.Tracing.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)
	cfg.Tracing.SampleRatio = envutil.Float("OTEL_SAMPLE_RATIO", cfg.Tracing.SampleRatio)
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		problems = append(problems, "JWT_SECRET_KEY is required")
	}
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		problems = append(problems, "LLM_API_KEY is required")
	}
	switch c.DB.Driver {
	case db.DriverPostgres:
		if strings.TrimSpace(c.DB.DatabaseURL) == "" {
			problems = append(problems, "DATABASE_URL is required for the postgres driver")
		}
	case db.DriverSQLite:
	default:
		problems = append(problems, fmt.Sprintf("unknown DB_DRIVER %q", c.DB.Driver))
	}
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if strings.TrimSpace(c.Cache.RedisAddr) == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis cache backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown CACHE_BACKEND %q", c.Cache.Backend))
	}
	if c.Context.BudgetTokens <= 0 {
		problems = append(problems, "CONTEXT_BUDGET_TOKENS must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c Config) AccessTokenTTL() time.Duration { return seconds(c.AccessTokenTTLSeconds) }
