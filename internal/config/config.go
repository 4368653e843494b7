package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort              = 2333
	defaultEnv               = "development"
	defaultRequestTimeoutSec = 120
	defaultRateLimitMax      = 20
	defaultRateLimitWindow   = 60
	defaultRegradeMaxFree    = 2
	defaultRegradeTTLDays    = 7
	defaultUsageTimeoutSec   = 10
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port              int             `yaml:"port"`
	Env               string          `yaml:"env"` // "development" | "production"
	RedisURL          string          `yaml:"redis_url"`
	AllowedOrigins    []string        `yaml:"allowed_origins"`
	AuthSecret        string          `yaml:"auth_secret"`
	RequestTimeoutSec int             `yaml:"request_timeout_sec"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
	Regrade           RegradeConfig   `yaml:"regrade"`
	UsageService      UsageConfig     `yaml:"usage_service"`
	AI                AIConfig        `yaml:"ai"`
}

// RateLimitConfig tunes the in-process sliding-window limiter.
type RateLimitConfig struct {
	Max       int `yaml:"max"`
	WindowSec int `yaml:"window_sec"`
}

// RegradeConfig controls the free-regrade capability tokens. An empty Secret
// disables token issuance entirely (fail closed).
type RegradeConfig struct {
	Secret  string `yaml:"secret"`
	MaxFree int    `yaml:"max_free"`
	TTLDays int    `yaml:"ttl_days"`
}

// UsageConfig points at the external subscription/usage-quota service.
type UsageConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// AIConfig lists model providers. The first enabled provider is used.
type AIConfig struct {
	EnableTranscription bool         `yaml:"enable_transcription"`
	Providers           []AIProvider `yaml:"providers"`
}

// Normalized provider types.
const (
	ProviderGemini           = "gemini"
	ProviderOpenAICompatible = "openai-compatible"
)

// AIProvider describes one model backend.
type AIProvider struct {
	ID              string `yaml:"id"`
	Type            string `yaml:"type"` // gemini | openai-compatible
	APIKey          string `yaml:"api_key"`
	Endpoint        string `yaml:"endpoint"`
	TranscribeModel string `yaml:"transcribe_model"`
	GradeModel      string `yaml:"grade_model"`
	Enabled         bool   `yaml:"enabled"`
}

type rawAppConfig struct {
	Port               int             `yaml:"port"`
	Env                string          `yaml:"env"`
	NodeEnv            string          `yaml:"node_env"`
	RedisURL           string          `yaml:"redis_url"`
	AllowedOrigins     []string        `yaml:"allowed_origins"`
	CORSAllowedOrigins []string        `yaml:"cors_allowed_origins"`
	AuthSecret         string          `yaml:"auth_secret"`
	JWTSecret          string          `yaml:"jwt_secret"`
	RequestTimeoutSec  int             `yaml:"request_timeout_sec"`
	RateLimit          rawRateLimit    `yaml:"rate_limit"`
	Regrade            rawRegrade      `yaml:"regrade"`
	UsageService       rawUsageService `yaml:"usage_service"`
	AI                 rawAIConfig     `yaml:"ai"`
}

type rawRateLimit struct {
	Max       int `yaml:"max"`
	WindowSec int `yaml:"window_sec"`
}

type rawRegrade struct {
	Secret  string `yaml:"secret"`
	MaxFree *int   `yaml:"max_free"`
	TTLDays *int   `yaml:"ttl_days"`
}

type rawUsageService struct {
	BaseURL    string `yaml:"base_url"`
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type rawAIConfig struct {
	EnableTranscription *bool        `yaml:"enable_transcription"`
	Providers           []AIProvider `yaml:"providers"`
}

// Load reads and validates the YAML config file.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	applyRawAppConfig(&cfg, raw)
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.RateLimit.Max < 1 {
		return nil, fmt.Errorf("invalid rate_limit.max %d in %q, expected >= 1", cfg.RateLimit.Max, path)
	}
	if cfg.RateLimit.WindowSec < 1 {
		return nil, fmt.Errorf("invalid rate_limit.window_sec %d in %q, expected >= 1", cfg.RateLimit.WindowSec, path)
	}
	if cfg.Regrade.MaxFree < 0 {
		return nil, fmt.Errorf("invalid regrade.max_free %d in %q, expected >= 0", cfg.Regrade.MaxFree, path)
	}
	if cfg.Regrade.TTLDays < 1 {
		return nil, fmt.Errorf("invalid regrade.ttl_days %d in %q, expected >= 1", cfg.Regrade.TTLDays, path)
	}
	if strings.TrimSpace(cfg.UsageService.BaseURL) == "" {
		return nil, fmt.Errorf("usage_service.base_url is required in %q", path)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:              defaultPort,
		Env:               defaultEnv,
		RequestTimeoutSec: defaultRequestTimeoutSec,
		RateLimit: RateLimitConfig{
			Max:       defaultRateLimitMax,
			WindowSec: defaultRateLimitWindow,
		},
		Regrade: RegradeConfig{
			MaxFree: defaultRegradeMaxFree,
			TTLDays: defaultRegradeTTLDays,
		},
		UsageService: UsageConfig{
			TimeoutSec: defaultUsageTimeoutSec,
		},
		AI: AIConfig{
			EnableTranscription: true,
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.RedisURL); v != "" {
		cfg.RedisURL = normalizeRedisRawURL(v)
	}

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}

	if v := strings.TrimSpace(raw.AuthSecret); v != "" {
		cfg.AuthSecret = v
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" && cfg.AuthSecret == "" {
		cfg.AuthSecret = v
	}
	if raw.RequestTimeoutSec > 0 {
		cfg.RequestTimeoutSec = raw.RequestTimeoutSec
	}

	if raw.RateLimit.Max != 0 {
		cfg.RateLimit.Max = raw.RateLimit.Max
	}
	if raw.RateLimit.WindowSec != 0 {
		cfg.RateLimit.WindowSec = raw.RateLimit.WindowSec
	}

	cfg.Regrade.Secret = strings.TrimSpace(raw.Regrade.Secret)
	if raw.Regrade.MaxFree != nil {
		cfg.Regrade.MaxFree = *raw.Regrade.MaxFree
	}
	if raw.Regrade.TTLDays != nil {
		cfg.Regrade.TTLDays = *raw.Regrade.TTLDays
	}

	if v := strings.TrimSpace(raw.UsageService.BaseURL); v != "" {
		cfg.UsageService.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.UsageService.URL); v != "" && cfg.UsageService.BaseURL == "" {
		cfg.UsageService.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(raw.UsageService.APIKey); v != "" {
		cfg.UsageService.APIKey = v
	}
	if raw.UsageService.TimeoutSec > 0 {
		cfg.UsageService.TimeoutSec = raw.UsageService.TimeoutSec
	}

	if raw.AI.EnableTranscription != nil {
		cfg.AI.EnableTranscription = *raw.AI.EnableTranscription
	}
	if raw.AI.Providers != nil {
		cfg.AI.Providers = normalizeProviders(raw.AI.Providers)
	}

	cfg.Env = normalizeEnv(cfg.Env)
}

func normalizeProviders(providers []AIProvider) []AIProvider {
	out := make([]AIProvider, 0, len(providers))
	for _, p := range providers {
		p.ID = strings.TrimSpace(p.ID)
		p.Type = normalizeProviderType(p.Type)
		p.APIKey = strings.TrimSpace(p.APIKey)
		p.Endpoint = strings.TrimRight(strings.TrimSpace(p.Endpoint), "/")
		p.TranscribeModel = strings.TrimSpace(p.TranscribeModel)
		p.GradeModel = strings.TrimSpace(p.GradeModel)
		out = append(out, p)
	}
	return out
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	if t == "openaicompatible" {
		return ProviderOpenAICompatible
	}
	return t
}

func normalizeRedisRawURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// RequestTimeout returns the per-request ceiling for model calls.
func (c *AppConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// ActiveProvider returns the provider to use: the first enabled one. When id is
// non-empty it must match the provider id.
func (c *AIConfig) ActiveProvider(id string) *AIProvider {
	id = strings.TrimSpace(id)
	for _, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		if id != "" && p.ID != id {
			continue
		}
		selected := p
		return &selected
	}
	return nil
}
