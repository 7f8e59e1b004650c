package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string

	TranscribeProvider string // http, mock
	TranscribeURL      string
	TranscribeAPIKey   string

	InsightProvider string // service, openai
	AIServiceURL    string
	AIServiceToken  string
	OpenAIKey       string
	OpenAIModel     string

	PollInterval   time.Duration
	MaxPollRetries int

	FollowupChannel string
	FollowupTone    string

	UploadDir string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "local"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		TranscribeProvider: getEnv("TRANSCRIBE_PROVIDER", "http"),
		TranscribeURL:      os.Getenv("TRANSCRIBE_URL"),
		TranscribeAPIKey:   os.Getenv("TRANSCRIBE_API_KEY"),

		InsightProvider: getEnv("INSIGHT_PROVIDER", "service"),
		AIServiceURL:    os.Getenv("AI_SERVICE_URL"),
		AIServiceToken:  os.Getenv("AI_SERVICE_TOKEN"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),

		FollowupChannel: getEnv("FOLLOWUP_CHANNEL", "whatsapp"),
		FollowupTone:    getEnv("FOLLOWUP_TONE", "friendly"),

		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
	}

	interval, err := time.ParseDuration(getEnv("TRANSCRIBE_POLL_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TRANSCRIBE_POLL_INTERVAL: %w", err)
	}
	cfg.PollInterval = interval

	retries, err := strconv.Atoi(getEnv("TRANSCRIBE_POLL_MAX_RETRIES", "20"))
	if err != nil || retries < 1 {
		return nil, fmt.Errorf("invalid TRANSCRIBE_POLL_MAX_RETRIES: %q", getEnv("TRANSCRIBE_POLL_MAX_RETRIES", "20"))
	}
	cfg.MaxPollRetries = retries

	// Provider-specific requirements are validated here so misconfiguration
	// fails at startup, not on the first recording.
	if cfg.TranscribeProvider == "http" && cfg.TranscribeURL == "" {
		return nil, fmt.Errorf("TRANSCRIBE_URL is required when TRANSCRIBE_PROVIDER=http")
	}
	if cfg.InsightProvider == "service" && cfg.AIServiceURL == "" {
		return nil, fmt.Errorf("AI_SERVICE_URL is required when INSIGHT_PROVIDER=service")
	}
	if cfg.InsightProvider == "openai" && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when INSIGHT_PROVIDER=openai")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
