package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process-wide configuration loaded once at startup and
// read while cmd/memscribe-server wires the components together;
// per-call state travels on Context (see rcontext.go in this package).
type Config struct {
	Database    DatabaseConfig
	Embedder    EmbedderConfig
	LLM         LLMConfig
	Auth        AuthConfig
	LogLevel    string
	CORSOrigins []string
	RateLimit   RateLimitConfig
	Session     SessionConfig
	Monitor     MonitorConfig
	Buffer      BufferConfig
	Quota       QuotaConfig
}

type DatabaseConfig struct {
	Provider  string // sqlite | postgres | mysql
	URL       string
	AuthToken string
}

type EmbedderConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	Dimension int
}

type LLMConfig struct {
	APIKey string
	Model  string
}

type AuthConfig struct {
	ProviderKey string
	Disabled    bool // local transport only
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

type SessionConfig struct {
	TTL time.Duration
}

type MonitorConfig struct {
	Interval time.Duration
	Enabled  bool
}

type BufferConfig struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

type QuotaConfig struct {
	MemoriesPerUser int
	EntitiesPerUser int
}

// LoadConfigFromEnv reads every key in §6's Environment/config surface,
// applying documented defaults. It never fails on a missing optional key;
// it fails only when Validate (below) would reject the result.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Provider:  getEnvOrDefault("DATABASE_PROVIDER", "sqlite"),
			URL:       os.Getenv("DATABASE_URL"),
			AuthToken: os.Getenv("DATABASE_AUTH_TOKEN"),
		},
		Embedder: EmbedderConfig{
			APIKey:    os.Getenv("EMBEDDER_API_KEY"),
			Model:     getEnvOrDefault("EMBEDDER_MODEL", "text-embedding-3-small"),
			BaseURL:   os.Getenv("EMBEDDER_BASE_URL"),
			Dimension: getEnvIntOrDefault("EMBEDDER_DIMENSION", 1536),
		},
		LLM: LLMConfig{
			APIKey: os.Getenv("LLM_API_KEY"),
			Model:  getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		},
		Auth: AuthConfig{
			ProviderKey: os.Getenv("AUTH_PROVIDER_KEY"),
			Disabled:    getEnvBoolOrDefault("AUTH_DISABLED", false),
		},
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvIntOrDefault("RATE_LIMIT_REQUESTS_PER_MINUTE", 120),
		},
		Session: SessionConfig{
			TTL: time.Duration(getEnvIntOrDefault("SESSION_TTL_MINUTES", 60)) * time.Minute,
		},
		Monitor: MonitorConfig{
			Interval: time.Duration(getEnvIntOrDefault("EMBEDDER_MONITOR_INTERVAL_MS", 30000)) * time.Millisecond,
			Enabled:  getEnvBoolOrDefault("EMBEDDER_MONITOR_ENABLED", true),
		},
		Buffer: BufferConfig{
			MaxAttempts: getEnvIntOrDefault("BUFFER_MAX_ATTEMPTS", 8),
			BackoffBase: time.Duration(getEnvIntOrDefault("BUFFER_BACKOFF_BASE_MS", 1000)) * time.Millisecond,
			BackoffCap:  time.Duration(getEnvIntOrDefault("BUFFER_BACKOFF_CAP_MS", 300000)) * time.Millisecond,
		},
		Quota: QuotaConfig{
			MemoriesPerUser: getEnvIntOrDefault("QUOTA_MEMORIES_PER_USER", 100000),
			EntitiesPerUser: getEnvIntOrDefault("QUOTA_ENTITIES_PER_USER", 50000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigFromEnvFile loads a .env file (if present) before delegating to
// LoadConfigFromEnv, mirroring the teacher's LoadConfigFromEnvFile.
func LoadConfigFromEnvFile(envPath string) (*Config, error) {
	if err := godotenv.Load(envPath); err != nil {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}
	return LoadConfigFromEnv()
}

// Validate checks the recognized-but-required subset of the config surface.
// auth.provider_key is required unless auth.disabled=true (local transport
// only, per §6).
func (c *Config) Validate() error {
	if c.Database.Provider == "" {
		return New("Config.Validate", KindInvalidArgument, "database.provider is required", nil)
	}
	if !c.Auth.Disabled && c.Auth.ProviderKey == "" {
		return New("Config.Validate", KindInvalidArgument, "auth.provider_key is required unless auth.disabled=true", nil)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return New("Config.Validate", KindInvalidArgument, "log_level must be one of debug,info,warn,error", nil)
	}
	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FindEnvFile searches the current directory and up to 5 parent directories
// for a .env file, matching the teacher's discovery behavior.
func FindEnvFile() (string, bool) {
	dir, _ := os.Getwd()
	for i := 0; i < 6; i++ {
		p := filepath.Join(dir, ".env")
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false
}
