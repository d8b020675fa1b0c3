package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hirebench/hirebench/internal/domain"
)

const maxEventBatch = 10_000

type appendEventsRequest struct {
	Events []domain.EditorEvent `json:"events"`
}

// AppendEvents is the HTTP ingest path for event batches. The live editing
// surface normally streams over the WebSocket endpoint; this path exists for
// teardown beacons and retried batches, so duplicates are expected and the
// log is append-only either way.
func (h *Handler) AppendEvents(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if !key.Valid() {
		Error(w, http.StatusBadRequest, "candidate, assessment and question are required")
		return
	}

	var req appendEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Events) == 0 {
		JSON(w, http.StatusOK, map[string]int{"appended": 0})
		return
	}
	if len(req.Events) > maxEventBatch {
		Error(w, http.StatusRequestEntityTooLarge, "event batch too large")
		return
	}

	if err := h.repo.AppendEvents(r.Context(), key, req.Events); err != nil {
		slog.Error("failed to append event batch", "session_key", key.String(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to store events")
		return
	}

	JSON(w, http.StatusOK, map[string]int{"appended": len(req.Events)})
}
