// Package genai wraps the generative-text collaborator used for question
// authoring and code-quality feedback. Everything here is prompt-in /
// JSON-out; nothing in the core depends on it.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hirebench/hirebench/internal/config"
	"github.com/hirebench/hirebench/internal/domain"
)

// Service generates questions and reviews code via a chat-completion API.
type Service struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// New creates a Service from configuration. The caller decides whether to
// wire it at all; an empty API key should mean the feature stays disabled.
func New(cfg config.GenAIConfig, logger *slog.Logger) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: API key not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Service{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

const questionSystemPrompt = `You author coding-assessment problems. Respond with a single JSON object:
{"title": string, "statement": string, "test_cases": [{"input": string, "expected": string, "hidden": bool}], "scaffolds": {"<language>": string}}
Include at least 4 test cases, at least half of them hidden. No prose outside the JSON.`

type generatedQuestion struct {
	Title     string            `json:"title"`
	Statement string            `json:"statement"`
	TestCases []domain.TestCase `json:"test_cases"`
	Scaffolds map[string]string `json:"scaffolds"`
}

// GenerateQuestion produces a new question for the given topic and
// difficulty.
func (s *Service) GenerateQuestion(ctx context.Context, topic, difficulty, language string) (*domain.Question, error) {
	prompt := fmt.Sprintf("Topic: %s\nDifficulty: %s\nPrimary language: %s", topic, difficulty, language)

	raw, err := s.complete(ctx, questionSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var gen generatedQuestion
	if err := json.Unmarshal([]byte(raw), &gen); err != nil {
		return nil, fmt.Errorf("decode generated question: %w", err)
	}
	if gen.Title == "" || gen.Statement == "" || len(gen.TestCases) == 0 {
		return nil, fmt.Errorf("generated question is incomplete")
	}

	now := time.Now()
	return &domain.Question{
		ID:         uuid.NewString(),
		Title:      gen.Title,
		Statement:  gen.Statement,
		Topic:      topic,
		Difficulty: difficulty,
		TestCases:  gen.TestCases,
		Scaffolds:  gen.Scaffolds,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

const reviewSystemPrompt = `You review candidate code from a coding assessment. Respond with a single JSON object:
{"quality": int (1-10), "strengths": [string], "issues": [string], "summary": string}
No prose outside the JSON.`

// CodeReview is structured quality feedback for one submission.
type CodeReview struct {
	Quality   int      `json:"quality"`
	Strengths []string `json:"strengths"`
	Issues    []string `json:"issues"`
	Summary   string   `json:"summary"`
}

// ReviewCode analyzes a submission against its problem statement.
func (s *Service) ReviewCode(ctx context.Context, source, language, statement string) (*CodeReview, error) {
	prompt := fmt.Sprintf("Problem:\n%s\n\nLanguage: %s\n\nCode:\n%s", statement, language, source)

	raw, err := s.complete(ctx, reviewSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var review CodeReview
	if err := json.Unmarshal([]byte(raw), &review); err != nil {
		return nil, fmt.Errorf("decode code review: %w", err)
	}
	return &review, nil
}

func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxCompletionTokens: openai.Int(4096),
	})
	if err != nil {
		return "", fmt.Errorf("genai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in genai response")
	}

	s.logger.Debug("genai completion finished",
		"model", s.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	return stripCodeFence(resp.Choices[0].Message.Content), nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
