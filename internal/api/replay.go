package api

import (
	"log/slog"
	"net/http"

	"github.com/hirebench/hirebench/internal/domain"
	"github.com/hirebench/hirebench/internal/replay"
)

// replayBundle is everything a replay surface needs to drive its own player:
// the ordered event log plus the derived overlays. Markers are recomputed on
// every load; any pause events stored inline are returned but not trusted.
type replayBundle struct {
	Events     []domain.EditorEvent `json:"events"`
	DurationMs int64                `json:"duration_ms"`
	StartMs    int64                `json:"start_ms"`
	PauseBands []replay.PauseBand   `json:"pause_bands"`
	RunMarkers []replay.RunMarker   `json:"run_markers"`
	NoActivity bool                 `json:"no_activity"`
	Session    *domain.Session      `json:"session,omitempty"`
}

// ReplayBundle returns a session's full replayable state.
func (h *Handler) ReplayBundle(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if !key.Valid() {
		Error(w, http.StatusBadRequest, "candidate, assessment and question are required")
		return
	}

	raw, err := h.repo.LoadEventLog(r.Context(), key)
	if err != nil {
		slog.Error("failed to load event log", "session_key", key.String(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	bundle := replayBundle{NoActivity: len(raw) == 0}
	if bundle.NoActivity {
		JSON(w, http.StatusOK, bundle)
		return
	}

	runs, err := h.repo.LoadRunHistory(r.Context(), key)
	if err != nil {
		// The run overlay is decorative; serve the replay without it.
		slog.Warn("failed to load run history", "session_key", key.String(), "error", err)
	}

	startMs := replay.LogStart(raw)
	events := replay.PrepareLog(raw)

	bundle.Events = events
	bundle.StartMs = startMs
	bundle.DurationMs = events[len(events)-1].Timestamp
	bundle.PauseBands = replay.PauseBands(events, h.cfg.PauseThreshold.Milliseconds())
	bundle.RunMarkers = replay.RunMarkers(runs, startMs, bundle.DurationMs)

	if sess, err := h.repo.GetSession(r.Context(), key); err == nil {
		bundle.Session = sess
	}

	JSON(w, http.StatusOK, bundle)
}

// RunHistory returns the raw submission timeline for a session.
func (h *Handler) RunHistory(w http.ResponseWriter, r *http.Request) {
	key := sessionKeyFromRequest(r)
	if !key.Valid() {
		Error(w, http.StatusBadRequest, "candidate, assessment and question are required")
		return
	}

	runs, err := h.repo.LoadRunHistory(r.Context(), key)
	if err != nil {
		slog.Error("failed to load run history", "session_key", key.String(), "error", err)
		Error(w, http.StatusInternalServerError, "failed to load run history")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
