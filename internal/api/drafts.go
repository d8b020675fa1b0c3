package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hirebench/hirebench/internal/domain"
)

type saveDraftRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

// SaveDraft autosaves the candidate's working copy. Last write wins.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if !key.Valid() {
		Error(w, http.StatusBadRequest, "candidate, assessment and question are required")
		return
	}

	var req saveDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft := &domain.Draft{
		Key:       key,
		Language:  req.Language,
		Source:    req.Source,
		UpdatedAt: time.Now(),
	}
	if err := h.repo.UpsertDraft(r.Context(), draft); err != nil {
		slog.Error("failed to save draft", "session_key", key.String(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to save draft")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// GetDraft returns the candidate's autosaved working copy, if any.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if !key.Valid() {
		Error(w, http.StatusBadRequest, "candidate, assessment and question are required")
		return
	}

	draft, err := h.repo.GetDraft(r.Context(), key)
	if err != nil {
		slog.Error("failed to load draft", "session_key", key.String(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to load draft")
		return
	}
	if draft == nil {
		Error(w, http.StatusNotFound, "no draft saved")
		return
	}

	JSON(w, http.StatusOK, draft)
}
