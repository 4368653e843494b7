package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
usage_service:
  base_url: http://usage.internal
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2333, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 20, cfg.RateLimit.Max)
	assert.Equal(t, 60, cfg.RateLimit.WindowSec)
	assert.Equal(t, 2, cfg.Regrade.MaxFree)
	assert.Equal(t, 7, cfg.Regrade.TTLDays)
	assert.Equal(t, 10, cfg.UsageService.TimeoutSec)
	assert.True(t, cfg.AI.EnableTranscription)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
port: 8080
env: production
redis_url: localhost:6379
allowed_origins:
  - saiten.app
  - "*.saiten.app"
auth_secret: super-secret
request_timeout_sec: 90
rate_limit:
  max: 5
  window_sec: 30
regrade:
  secret: regrade-secret
  max_free: 3
  ttl_days: 14
usage_service:
  base_url: https://usage.internal/
  api_key: usage-key
  timeout_sec: 5
ai:
  enable_transcription: false
  providers:
    - id: main
      type: Gemini
      api_key: g-key
      transcribe_model: gemini-2.0-flash
      grade_model: gemini-2.0-pro
      enabled: true
    - id: alt
      type: openai_compatible
      api_key: o-key
      endpoint: https://llm.internal/
      grade_model: gpt-4o
      enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, "https://usage.internal", cfg.UsageService.BaseURL)
	assert.Equal(t, 3, cfg.Regrade.MaxFree)
	assert.False(t, cfg.AI.EnableTranscription)

	require.Len(t, cfg.AI.Providers, 2)
	assert.Equal(t, ProviderGemini, cfg.AI.Providers[0].Type)
	assert.Equal(t, ProviderOpenAICompatible, cfg.AI.Providers[1].Type)
	assert.Equal(t, "https://llm.internal", cfg.AI.Providers[1].Endpoint)
}

func TestLoadAliases(t *testing.T) {
	path := writeConfig(t, `
node_env: production
jwt_secret: legacy-secret
cors_allowed_origins:
  - saiten.app
usage_service:
  url: http://usage.internal
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "legacy-secret", cfg.AuthSecret)
	assert.Equal(t, []string{"saiten.app"}, cfg.AllowedOrigins)
	assert.Equal(t, "http://usage.internal", cfg.UsageService.BaseURL)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
usage_service:
  base_url: http://usage.internal
no_such_key: true
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingUsageBaseURL(t *testing.T) {
	path := writeConfig(t, `
port: 8080
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage_service.base_url")
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfig(t, `
port: 70000
usage_service:
  base_url: http://usage.internal
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestActiveProvider(t *testing.T) {
	cfg := AIConfig{Providers: []AIProvider{
		{ID: "disabled", Type: ProviderGemini, Enabled: false},
		{ID: "main", Type: ProviderGemini, Enabled: true},
		{ID: "alt", Type: ProviderOpenAICompatible, Enabled: true},
	}}

	first := cfg.ActiveProvider("")
	require.NotNil(t, first)
	assert.Equal(t, "main", first.ID)

	byID := cfg.ActiveProvider("alt")
	require.NotNil(t, byID)
	assert.Equal(t, "alt", byID.ID)

	assert.Nil(t, cfg.ActiveProvider("missing"))
}
