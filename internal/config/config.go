package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Backend
	APIBaseURL  string        `env:"API_BASE_URL,required,notEmpty"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// Auth
	AuthToken     string `env:"AUTH_TOKEN"`
	AuthTokenFile string `env:"AUTH_TOKEN_FILE" envDefault:".darknetduel/token"`

	// Payment window
	BrowserCommand string `env:"BROWSER_COMMAND"`

	// Purchase journal, disabled when empty
	DatabaseURL string `env:"DATABASE_URL"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Telegram logging
	TelegramBotToken  string `env:"TELEGRAM_BOT_TOKEN"`
	LogTelegramChatID int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int    `env:"LOG_TOPIC_ERROR"`
	LogTopicPurchase  int    `env:"LOG_TOPIC_PURCHASE"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return cfg, nil
}

// SlogLevel maps LOG_LEVEL to a slog level. Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.LogTelegramChatID != 0
}
