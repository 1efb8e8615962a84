package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for the application
type Config struct {
	DatabaseURL    string
	Port           string
	PrometheusPort string
	LogLevel       string
	LogFormat      string

	// Telegram bridge, optional. The bridge starts only when a token is set.
	TelegramToken   string
	TelegramChatID  int64
	TelegramGroupID string
	TelegramUserID  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "json"),
	}

	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN"); cfg.TelegramToken != "" {
		chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be an integer when TELEGRAM_TOKEN is set")
		}
		cfg.TelegramChatID = chatID

		if cfg.TelegramGroupID = os.Getenv("TELEGRAM_GROUP_ID"); cfg.TelegramGroupID == "" {
			return nil, fmt.Errorf("TELEGRAM_GROUP_ID is required when TELEGRAM_TOKEN is set")
		}
		if cfg.TelegramUserID = os.Getenv("TELEGRAM_USER_ID"); cfg.TelegramUserID == "" {
			return nil, fmt.Errorf("TELEGRAM_USER_ID is required when TELEGRAM_TOKEN is set")
		}
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
