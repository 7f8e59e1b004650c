package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRANSCRIBE_PROVIDER", "mock")
	t.Setenv("AI_SERVICE_URL", "https://ai.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mock", cfg.TranscribeProvider)
	assert.Equal(t, "service", cfg.InsightProvider)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 20, cfg.MaxPollRetries)
	assert.Equal(t, "whatsapp", cfg.FollowupChannel)
	assert.Equal(t, "friendly", cfg.FollowupTone)
	assert.Equal(t, "uploads", cfg.UploadDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRANSCRIBE_PROVIDER", "http")
	t.Setenv("TRANSCRIBE_URL", "https://stt.example.com")
	t.Setenv("TRANSCRIBE_POLL_INTERVAL", "2s")
	t.Setenv("TRANSCRIBE_POLL_MAX_RETRIES", "5")
	t.Setenv("INSIGHT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("FOLLOWUP_CHANNEL", "email")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.MaxPollRetries)
	assert.Equal(t, "email", cfg.FollowupChannel)
}

func TestLoadRejectsMissingProviderConfig(t *testing.T) {
	t.Setenv("TRANSCRIBE_PROVIDER", "http")
	t.Setenv("TRANSCRIBE_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "TRANSCRIBE_URL")

	t.Setenv("TRANSCRIBE_PROVIDER", "mock")
	t.Setenv("INSIGHT_PROVIDER", "service")
	t.Setenv("AI_SERVICE_URL", "")
	_, err = Load()
	assert.ErrorContains(t, err, "AI_SERVICE_URL")

	t.Setenv("INSIGHT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("TRANSCRIBE_PROVIDER", "mock")
	t.Setenv("AI_SERVICE_URL", "https://ai.example.com")

	t.Setenv("TRANSCRIBE_POLL_INTERVAL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "TRANSCRIBE_POLL_INTERVAL")

	t.Setenv("TRANSCRIBE_POLL_INTERVAL", "10s")
	t.Setenv("TRANSCRIBE_POLL_MAX_RETRIES", "zero")
	_, err = Load()
	assert.ErrorContains(t, err, "TRANSCRIBE_POLL_MAX_RETRIES")
}
