package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.AIProvider != "ollama" {
		t.Errorf("AIProvider = %q, want ollama", cfg.AIProvider)
	}
	if cfg.MaxSuggestions != 8 {
		t.Errorf("MaxSuggestions = %d, want 8", cfg.MaxSuggestions)
	}
	if cfg.EmbeddingDim != 1536 {
		t.Errorf("EmbeddingDim = %d, want 1536", cfg.EmbeddingDim)
	}
	if !cfg.SchedulerEnabled {
		t.Error("scheduler should default to enabled")
	}
	if cfg.InstanceID == "" {
		t.Error("InstanceID should be generated when unset")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("MAX_SUGGESTIONS", "3")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")
	t.Setenv("LLM_TEMPERATURE", "0.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.AIProvider != "openai" {
		t.Errorf("AIProvider = %q", cfg.AIProvider)
	}
	if cfg.MaxSuggestions != 3 {
		t.Errorf("MaxSuggestions = %d", cfg.MaxSuggestions)
	}
	if cfg.SchedulerEnabled {
		t.Error("SCHEDULER_ENABLED=false not honored")
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.LLMTemperature != 0.7 {
		t.Errorf("LLMTemperature = %v", cfg.LLMTemperature)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("MAX_SUGGESTIONS", "not-a-number")
	t.Setenv("SCHEDULER_ENABLED", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxSuggestions != 8 {
		t.Errorf("bad int should fall back to default, got %d", cfg.MaxSuggestions)
	}
	if !cfg.SchedulerEnabled {
		t.Error("bad bool should fall back to default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid ollama config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing database url",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: true,
		},
		{
			name:    "unknown ai provider",
			mutate:  func(c *Config) { c.AIProvider = "gemini" },
			wantErr: true,
		},
		{
			name:    "openai without api key",
			mutate:  func(c *Config) { c.AIProvider = "openai" },
			wantErr: true,
		},
		{
			name: "openai with api key",
			mutate: func(c *Config) {
				c.AIProvider = "openai"
				c.OpenAIAPIKey = "sk-test"
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				DatabaseURL: "postgres://localhost:5432/suggest",
				AIProvider:  "ollama",
			}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := &Config{
		RefreshIntervalMin:   15,
		RefreshTimeBudgetSec: 90,
		CatchUpLockTTLMin:    10,
	}
	if got := cfg.RefreshInterval(); got != 15*time.Minute {
		t.Errorf("RefreshInterval() = %v", got)
	}
	if got := cfg.RefreshTimeBudget(); got != 90*time.Second {
		t.Errorf("RefreshTimeBudget() = %v", got)
	}
	if got := cfg.CatchUpLockTTL(); got != 10*time.Minute {
		t.Errorf("CatchUpLockTTL() = %v", got)
	}
}
