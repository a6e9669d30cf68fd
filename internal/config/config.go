package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay process.
type Config struct {
	Port string
	Env  string

	DBURL    string
	RedisURL string

	JWTSecret string

	// AI provider selection and credentials
	AIProvider        string
	GeminiAPIKey      string
	GeminiModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string

	// Relay behavior
	HistoryLimit int           // messages delivered on room join
	AITimeout    time.Duration // hard budget for one generation call
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port: getEnv("PORT", "4000"),
		Env:  getEnv("ENV", "development"),

		DBURL:    os.Getenv("DB_URL"),
		RedisURL: os.Getenv("REDIS_URL"),

		JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-me"),

		AIProvider:        getEnv("AI_PROVIDER", "gemini"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getEnv("OPENROUTER_MODEL", "openrouter/auto"),

		HistoryLimit: getEnvInt("HISTORY_LIMIT", 200),
		AITimeout:    time.Duration(getEnvInt("AI_TIMEOUT_SECONDS", 90)) * time.Second,
	}

	if cfg.Env == "production" {
		if cfg.DBURL == "" {
			panic("DB_URL is required in production")
		}
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
