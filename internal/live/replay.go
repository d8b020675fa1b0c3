package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/hirebench/hirebench/internal/config"
	"github.com/hirebench/hirebench/internal/domain"
	"github.com/hirebench/hirebench/internal/identity"
	"github.com/hirebench/hirebench/internal/replay"
	"github.com/hirebench/hirebench/internal/store"
)

// Snapshots are pushed on a fixed cadence while state is changing; sampling
// the player is cheap and never applies edits, so the rate is a pure UI
// smoothness knob.
const snapshotPushInterval = 50 * time.Millisecond

// ReplayHandler drives a server-side Player over a WebSocket: the client
// sends transport controls, the server streams renderable snapshots back.
type ReplayHandler struct {
	repo          store.Repository
	cfg           *config.Config
	allowedOrigin string
	isDev         bool
}

// NewReplayHandler creates the replay streaming endpoint handler.
func NewReplayHandler(repo store.Repository, cfg *config.Config) *ReplayHandler {
	return &ReplayHandler{
		repo:          repo,
		cfg:           cfg,
		allowedOrigin: cfg.FrontendURL,
		isDev:         cfg.IsDevelopment(),
	}
}

// controlMessage is one transport command from the viewer.
type controlMessage struct {
	Op       string  `json:"op"` // "play", "pause", "stop", "seek", "speed"
	TargetMs int64   `json:"target_ms,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// ServeHTTP loads the session, builds a player and runs the control/stream
// loops until the viewer disconnects.
func (h *ReplayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := domain.SessionKey{
		CandidateID:  r.URL.Query().Get("candidate_id"),
		AssessmentID: identity.AssessmentIDFromContext(r.Context()),
		QuestionID:   r.URL.Query().Get("question_id"),
	}
	if key.CandidateID == "" {
		key.CandidateID = identity.CandidateIDFromContext(r.Context())
	}
	if !key.Valid() {
		http.Error(w, "assessment_id and question_id are required", http.StatusBadRequest)
		return
	}

	if !checkOrigin(r, h.allowedOrigin, h.isDev) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	events, err := h.repo.LoadEventLog(r.Context(), key)
	if err != nil {
		slog.Error("failed to load event log for replay", "session_key", key.String(), "error", err)
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return
	}
	runs, err := h.repo.LoadRunHistory(r.Context(), key)
	if err != nil {
		slog.Warn("failed to load run history for replay", "session_key", key.String(), "error", err)
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept replay WebSocket", "error", err, "session_key", key.String())
		return
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "replay ended")
	}()

	player := replay.NewPlayer(events, runs, h.cfg.PauseThreshold.Milliseconds(),
		replay.WithSnapshotEvery(h.cfg.SnapshotEvery))
	defer player.Stop()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Initial snapshot so the viewer renders the timeline immediately.
	if err := pushSnapshot(ctx, ws, player.Snapshot()); err != nil {
		return
	}

	go h.streamSnapshots(ctx, ws, player)

	slog.Info("replay session opened", "session_key", key.String(), "events", len(events))

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				slog.Info("replay session closed", "session_key", key.String())
			} else {
				slog.Warn("replay read error", "session_key", key.String(), "error", err)
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("dropping malformed replay control", "session_key", key.String(), "error", err)
			continue
		}

		switch msg.Op {
		case "play":
			player.Play()
		case "pause":
			player.Pause()
		case "stop":
			player.Stop()
		case "seek":
			player.Seek(msg.TargetMs)
		case "speed":
			player.SetSpeed(msg.Speed)
		default:
			slog.Debug("unknown replay control op", "op", msg.Op)
		}
	}
}

// streamSnapshots pushes player state while it changes. When the player is
// idle the loop sends nothing, so a paused viewer costs no bandwidth.
func (h *ReplayHandler) streamSnapshots(ctx context.Context, ws *websocket.Conn, player *replay.Player) {
	ticker := time.NewTicker(snapshotPushInterval)
	defer ticker.Stop()

	var last replay.Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := player.Snapshot()
			if snap.State == last.State && snap.ProgressMs == last.ProgressMs && snap.Text == last.Text {
				continue
			}
			if err := pushSnapshot(ctx, ws, snap); err != nil {
				return
			}
			last = snap
		}
	}
}

func pushSnapshot(ctx context.Context, ws *websocket.Conn, snap replay.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
