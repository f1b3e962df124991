package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// DefaultCompletionTimeout bounds a single completion call when LLM_TIMEOUT_MS is unset or invalid.
const DefaultCompletionTimeout = 60 * time.Second

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL     string        `env:"DATABASE_URL,notEmpty"`
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"default-super-secret-key"` // CHANGE THIS IN PRODUCTION!
	TokenExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"168h"`
	AdminAPIKey     string        `env:"ADMIN_API_KEY"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	LLM LLMConfig

	// DailyMessageLimit is kept raw; see Chat().
	DailyMessageLimit string `env:"DAILY_MESSAGE_LIMIT"`
	ChatLogURL        string `env:"CHAT_LOG_URL"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	APIKey    string `env:"OPENROUTER_KEY,notEmpty"`
	BaseURL   string `env:"OPENROUTER_BASE" envDefault:"https://openrouter.ai/api/v1"`
	Model     string `env:"OPENROUTER_MODEL" envDefault:"openai/gpt-4o-mini"`
	Referer   string `env:"OPENROUTER_REFERER" envDefault:"https://lexai-chat.com"`
	Title     string `env:"OPENROUTER_TITLE" envDefault:"Lexar.Chat"`
	// TimeoutMs is kept raw; see Timeout().
	TimeoutMs string `env:"LLM_TIMEOUT_MS" envDefault:"60000"`
}

// Timeout returns the completion timeout. Anything that is not a positive
// integer number of milliseconds falls back to DefaultCompletionTimeout.
func (c LLMConfig) Timeout() time.Duration {
	ms := positiveInt(c.TimeoutMs)
	if ms == 0 {
		return DefaultCompletionTimeout
	}
	return time.Duration(ms) * time.Millisecond
}

// ChatOptions are the knobs of the conversation service.
type ChatOptions struct {
	// DailyMessageLimit caps user messages per server day. Zero disables the quota.
	DailyMessageLimit int
	CompletionTimeout time.Duration
}

// Chat derives the conversation options from the raw configuration.
func (c *Config) Chat() ChatOptions {
	return ChatOptions{
		DailyMessageLimit: ParseDailyLimit(c.DailyMessageLimit),
		CompletionTimeout: c.LLM.Timeout(),
	}
}

// ParseDailyLimit turns DAILY_MESSAGE_LIMIT into a limit. Anything that is not a
// positive integer disables the quota (returns 0) rather than meaning "no messages".
func ParseDailyLimit(raw string) int {
	return positiveInt(raw)
}

// positiveInt parses raw as a positive integer and returns 0 for anything else.
func positiveInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
// Missing .env files are not an error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.HTTPPort = strings.TrimPrefix(strings.TrimSpace(cfg.HTTPPort), ":")
	if cfg.HTTPPort == "" {
		cfg.HTTPPort = "8080"
	}
	cfg.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.LLM.BaseURL), "/")

	return cfg, nil
}
