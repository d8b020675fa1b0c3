package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hirebench/hirebench/internal/domain"
)

type submitRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

// Submit dispatches candidate code to the judge, scores it against the
// question's test cases (hidden ones included) and records the run.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.judge == nil {
		Error(w, http.StatusServiceUnavailable, "code execution is not configured")
		return
	}

	key := sessionKeyFromRequest(r)
	if !key.Valid() {
		Error(w, http.StatusBadRequest, "candidate, assessment and question are required")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" || req.Language == "" {
		Error(w, http.StatusBadRequest, "language and source are required")
		return
	}

	q, err := h.repo.GetQuestion(r.Context(), key.QuestionID)
	if err != nil {
		slog.Error("failed to load question for submission", "question_id", key.QuestionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load question")
		return
	}
	if q == nil {
		Error(w, http.StatusNotFound, "question not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Judge.Timeout)
	defer cancel()

	result, err := h.judge.Score(ctx, req.Source, req.Language, q.TestCases)
	if err != nil {
		slog.Error("judge scoring failed", "session_key", key.String(), "error", err)
		Error(w, http.StatusBadGateway, "code execution failed")
		return
	}

	sub := &domain.Submission{
		ID:            uuid.NewString(),
		Key:           key,
		Language:      req.Language,
		Source:        req.Source,
		Verdict:       result.Verdict,
		Score:         result.Score,
		TimeMs:        result.TimeMs,
		MemoryKB:      result.MemoryKB,
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
		CompileOutput: result.CompileOutput,
		PassedTests:   result.PassedTests,
		TotalTests:    result.TotalTests,
		SubmittedAt:   time.Now(),
	}

	if err := h.repo.InsertSubmission(r.Context(), sub); err != nil {
		// The candidate still gets their verdict; only the replay overlay
		// loses this run.
		slog.Error("failed to record submission", "session_key", key.String(), "error", err)
	}

	JSON(w, http.StatusOK, sub)
}

// ListSubmissions returns a session's submission history.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if !key.Valid() {
		Error(w, http.StatusBadRequest, "candidate, assessment and question are required")
		return
	}

	subs, err := h.repo.ListSubmissions(r.Context(), key)
	if err != nil {
		slog.Error("failed to list submissions", "session_key", key.String(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"submissions": subs})
}

type reviewRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

// ReviewCode returns structured quality feedback for candidate code.
func (h *Handler) ReviewCode(w http.ResponseWriter, r *http.Request) {
	if h.gen == nil {
		Error(w, http.StatusServiceUnavailable, "code review is not configured")
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		Error(w, http.StatusBadRequest, "source is required")
		return
	}

	questionID := chi.URLParam(r, "questionID")
	statement := ""
	if q, err := h.repo.GetQuestion(r.Context(), questionID); err == nil && q != nil {
		statement = q.Statement
	}

	review, err := h.gen.ReviewCode(r.Context(), req.Source, req.Language, statement)
	if err != nil {
		slog.Error("code review failed", "question_id", questionID, "error", err)
		Error(w, http.StatusBadGateway, "code review failed")
		return
	}

	JSON(w, http.StatusOK, review)
}
