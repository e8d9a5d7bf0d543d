// Package config loads the service configuration from environment variables.
// Every setting has a default so the server starts with only OPENAI_API_KEY
// set; DATABASE_URL is optional and enables the report archive.
package config

import (
	"errors"
	"time"

	"mindtriage/internal/platform/envutil"
)

// Config is the resolved runtime configuration.
type Config struct {
	Port    string
	LogMode string

	OpenAIKey     string
	OpenAIBaseURL string
	ChatModel     string

	ChatTemperature   float32
	ChatMaxTokens     int
	ReportTemperature float32
	ReportMaxTokens   int

	ReportMaxRetries     int
	ReportRetryDelay     time.Duration
	ReportAttemptTimeout time.Duration
	AutoReport           bool

	DatabaseURL   string
	NotifyChannel string

	PDFFontPath string
}

// ErrMissingAPIKey is returned by Load when OPENAI_API_KEY is unset.
var ErrMissingAPIKey = errors.New("OPENAI_API_KEY must be set")

// Load reads the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "dev"),

		OpenAIKey:     envutil.String("OPENAI_API_KEY", ""),
		OpenAIBaseURL: envutil.String("OPENAI_BASE_URL", ""),
		ChatModel:     envutil.String("OPENAI_MODEL_CHAT", "gpt-4o-mini"),

		ChatTemperature:   float32(envutil.Float("CHAT_TEMPERATURE", 0.7)),
		ChatMaxTokens:     envutil.Int("CHAT_MAX_TOKENS", 1000),
		ReportTemperature: float32(envutil.Float("REPORT_TEMPERATURE", 0.5)),
		ReportMaxTokens:   envutil.Int("REPORT_MAX_TOKENS", 2000),

		ReportMaxRetries:     envutil.Int("REPORT_MAX_RETRIES", 2),
		ReportRetryDelay:     envutil.Duration("REPORT_RETRY_DELAY", 2*time.Second),
		ReportAttemptTimeout: envutil.Duration("REPORT_ATTEMPT_TIMEOUT", 60*time.Second),
		AutoReport:           envutil.Bool("REPORT_AUTO", false),

		DatabaseURL:   envutil.String("DATABASE_URL", ""),
		NotifyChannel: envutil.String("POSTGRES_NOTIFY_CHANNEL", "triage_reports"),

		PDFFontPath: envutil.String("PDF_FONT_PATH", ""),
	}
	if cfg.OpenAIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	if cfg.ReportMaxRetries < 0 {
		cfg.ReportMaxRetries = 0
	}
	return cfg, nil
}
