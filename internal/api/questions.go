package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hirebench/hirebench/internal/domain"
)

type createQuestionRequest struct {
	Title      string            `json:"title"`
	Statement  string            `json:"statement"`
	Topic      string            `json:"topic"`
	Difficulty string            `json:"difficulty"`
	TestCases  []domain.TestCase `json:"test_cases"`
	Scaffolds  map[string]string `json:"scaffolds"`
}

// CreateQuestion stores a manually authored question.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.Statement == "" || len(req.TestCases) == 0 {
		Error(w, http.StatusBadRequest, "title, statement and test_cases are required")
		return
	}

	now := time.Now()
	q := &domain.Question{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Statement:  req.Statement,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		TestCases:  req.TestCases,
		Scaffolds:  req.Scaffolds,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := h.repo.CreateQuestion(r.Context(), q); err != nil {
		slog.Error("failed to create question", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create question")
		return
	}

	JSON(w, http.StatusCreated, q)
}

type generateQuestionRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Language   string `json:"language"`
}

// GenerateQuestion asks the generative collaborator for a new question and
// stores the result.
func (h *Handler) GenerateQuestion(w http.ResponseWriter, r *http.Request) {
	if h.gen == nil {
		Error(w, http.StatusServiceUnavailable, "question generation is not configured")
		return
	}

	var req generateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Topic == "" {
		Error(w, http.StatusBadRequest, "topic is required")
		return
	}

	q, err := h.gen.GenerateQuestion(r.Context(), req.Topic, req.Difficulty, req.Language)
	if err != nil {
		slog.Error("question generation failed", "topic", req.Topic, "error", err)
		Error(w, http.StatusBadGateway, "question generation failed")
		return
	}

	if err := h.repo.CreateQuestion(r.Context(), q); err != nil {
		slog.Error("failed to store generated question", "error", err)
		Error(w, http.StatusInternalServerError, "failed to store question")
		return
	}

	JSON(w, http.StatusCreated, q)
}

// GetQuestion returns one question with hidden test cases stripped.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "questionID")

	q, err := h.repo.GetQuestion(r.Context(), id)
	if err != nil {
		slog.Error("failed to load question", "question_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load question")
		return
	}
	if q == nil {
		Error(w, http.StatusNotFound, "question not found")
		return
	}

	q.TestCases = q.VisibleTestCases()
	JSON(w, http.StatusOK, q)
}

// ListQuestions returns all questions without statements or test cases.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.repo.ListQuestions(r.Context())
	if err != nil {
		slog.Error("failed to list questions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list questions")
		return
	}

	type summary struct {
		ID         string `json:"id"`
		Title      string `json:"title"`
		Topic      string `json:"topic,omitempty"`
		Difficulty string `json:"difficulty,omitempty"`
	}
	out := make([]summary, 0, len(questions))
	for _, q := range questions {
		out = append(out, summary{ID: q.ID, Title: q.Title, Topic: q.Topic, Difficulty: q.Difficulty})
	}

	JSON(w, http.StatusOK, map[string]interface{}{"questions": out})
}
