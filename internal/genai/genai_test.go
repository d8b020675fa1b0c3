package genai

import (
	"testing"

	"github.com/hirebench/hirebench/internal/config"
)

func configWithKey(key string) config.GenAIConfig {
	return config.GenAIConfig{APIKey: key, Model: "gpt-4o"}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare json", `{"quality": 8}`, `{"quality": 8}`},
		{"json fence", "```json\n{\"quality\": 8}\n```", `{"quality": 8}`},
		{"plain fence", "```\n{\"quality\": 8}\n```", `{"quality": 8}`},
		{"surrounding whitespace", "  \n```json\n{}\n```\n ", "{}"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(configWithKey(""), nil); err == nil {
		t.Error("Expected error for empty API key")
	}
	if _, err := New(configWithKey("sk-test"), nil); err != nil {
		t.Errorf("New with key: %v", err)
	}
}
