// Package api provides HTTP handlers for the hirebench API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hirebench/hirebench/internal/config"
	"github.com/hirebench/hirebench/internal/domain"
	"github.com/hirebench/hirebench/internal/genai"
	"github.com/hirebench/hirebench/internal/identity"
	"github.com/hirebench/hirebench/internal/judge"
	"github.com/hirebench/hirebench/internal/store"
)

// Handler bundles the API's dependencies. The genai and judge collaborators
// are optional; endpoints needing an absent one answer 503.
type Handler struct {
	repo  store.Repository
	judge *judge.Client
	gen   *genai.Service
	cfg   *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, judgeClient *judge.Client, gen *genai.Service, cfg *config.Config) *Handler {
	return &Handler{
		repo:  repo,
		judge: judgeClient,
		gen:   gen,
		cfg:   cfg,
	}
}

// RegisterRoutes mounts all API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/questions", h.CreateQuestion)
		r.Post("/questions/generate", h.GenerateQuestion)
		r.Get("/questions", h.ListQuestions)
		r.Get("/questions/{questionID}", h.GetQuestion)

		r.Post("/questions/{questionID}/events", h.AppendEvents)
		r.Get("/questions/{questionID}/replay", h.ReplayBundle)
		r.Get("/questions/{questionID}/runs", h.RunHistory)

		r.Put("/questions/{questionID}/draft", h.SaveDraft)
		r.Get("/questions/{questionID}/draft", h.GetDraft)

		r.Post("/questions/{questionID}/submissions", h.Submit)
		r.Get("/questions/{questionID}/submissions", h.ListSubmissions)
		r.Post("/questions/{questionID}/review", h.ReviewCode)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// sessionKeyFromRequest assembles the (candidate, assessment, question)
// triple from identity context and the route. The candidate query parameter
// lets a reviewer load someone else's session.
func sessionKeyFromRequest(r *http.Request) domain.SessionKey {
	candidate := r.URL.Query().Get("candidate_id")
	if candidate == "" {
		candidate = identity.CandidateIDFromContext(r.Context())
	}
	return domain.SessionKey{
		CandidateID:  candidate,
		AssessmentID: identity.AssessmentIDFromContext(r.Context()),
		QuestionID:   chi.URLParam(r, "questionID"),
	}
}
