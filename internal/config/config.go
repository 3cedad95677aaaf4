package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	StoreBackend string        `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	SupabaseURL  string        `env:"SUPABASE_URL"`
	SupabaseKey  string        `env:"SUPABASE_KEY"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// Narrator
	NarratorProvider string        `env:"NARRATOR_PROVIDER" envDefault:"gemini"`
	NarratorModel    string        `env:"NARRATOR_MODEL"`
	TitleModel       string        `env:"TITLE_MODEL"`
	NarratorTimeout  time.Duration `env:"NARRATOR_TIMEOUT" envDefault:"60s"`
	HistoryLimit     int           `env:"HISTORY_LIMIT" envDefault:"40"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	AnthropicAPIKey  string        `env:"ANTHROPIC_API_KEY"`

	// Identity. An empty secret trusts the X-User-ID header.
	JWTSecret string `env:"JWT_SECRET"`

	// Tracing
	TracesEnabled bool   `env:"OTEL_TRACES_ENABLED" envDefault:"false"`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	ServiceName   string `env:"SERVICE_NAME" envDefault:"taleparty"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.StoreBackend) {
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis backend"))
		}
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_KEY are required for the supabase backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend))
	}

	switch strings.ToLower(c.NarratorProvider) {
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("unsupported NARRATOR_PROVIDER %q", c.NarratorProvider))
	}

	if c.IsProduction() && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in production"))
	}

	if c.HistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit))
	}

	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
