// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// Recorder tuning. Defaults match observed editor behavior: a 3s flush
	// interval and a 10s idle gap before a pause annotation is synthesized.
	FlushInterval  time.Duration
	PauseThreshold time.Duration

	// SnapshotEvery bounds replay seek cost; 0 disables snapshots.
	SnapshotEvery int

	// Retention for live recorders and autosaved drafts.
	SessionTTL time.Duration
	DraftTTL   time.Duration

	Judge JudgeConfig
	GenAI GenAIConfig
}

// JudgeConfig points at the remote execution sandbox.
type JudgeConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// GenAIConfig controls the optional question-generation collaborator.
type GenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/hirebench.db"),
		FlushInterval:  getEnvDuration("RECORDER_FLUSH_INTERVAL", 3*time.Second),
		PauseThreshold: getEnvDuration("RECORDER_PAUSE_THRESHOLD", 10*time.Second),
		SnapshotEvery:  getEnvInt("REPLAY_SNAPSHOT_EVERY", 500),
		SessionTTL:     getEnvDuration("SESSION_TTL", 30*time.Minute),
		DraftTTL:       getEnvDuration("DRAFT_TTL", 30*24*time.Hour),
		Judge: JudgeConfig{
			URL:     getEnv("JUDGE_URL", ""),
			Token:   getEnv("JUDGE_TOKEN", ""),
			Timeout: getEnvDuration("JUDGE_TIMEOUT", 60*time.Second),
		},
		GenAI: GenAIConfig{
			APIKey:  getEnv("GENAI_API_KEY", ""),
			BaseURL: getEnv("GENAI_BASE_URL", ""),
			Model:   getEnv("GENAI_MODEL", "gpt-4o"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("RECORDER_FLUSH_INTERVAL must be > 0")
	}
	if c.PauseThreshold <= 0 {
		return fmt.Errorf("RECORDER_PAUSE_THRESHOLD must be > 0")
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("REPLAY_SNAPSHOT_EVERY must be >= 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.DraftTTL <= 0 {
		return fmt.Errorf("DRAFT_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
