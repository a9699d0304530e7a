package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	RedisURL string
	DataDir  string // declarative deity definition files

	// Provider credentials. A missing credential makes that backend
	// unavailable; the registry falls back to the null provider.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	OllamaBaseURL   string

	DefaultProvider string
	DefaultModel    string
	ProviderTimeout time.Duration

	// SweepInterval drives the periodic progression scan. Zero disables it.
	SweepInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:        getEnv("REDIS_URL", ""),
		DataDir:         getEnv("DATA_DIR", "./data/deities"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		OllamaBaseURL:   getEnv("OLLAMA_BASE_URL", ""),
		DefaultProvider: getEnv("DEFAULT_PROVIDER", "anthropic"),
		DefaultModel:    getEnv("DEFAULT_MODEL", ""),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT_SECONDS", 30*time.Second),
		SweepInterval:   getDuration("SWEEP_INTERVAL_SECONDS", 60*time.Second),
	}
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return defaultValue
	}
	return time.Duration(secs) * time.Second
}
