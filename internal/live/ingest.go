// Package live provides the WebSocket surfaces: streaming event capture
// from the editing surface into recorders, and server-driven session replay.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"

	"github.com/hirebench/hirebench/internal/config"
	"github.com/hirebench/hirebench/internal/domain"
	"github.com/hirebench/hirebench/internal/identity"
	"github.com/hirebench/hirebench/internal/recorder"
	"github.com/hirebench/hirebench/internal/store"
)

// IngestHandler accepts a WebSocket per editing session and feeds a
// Recorder. The socket carries raw editor activity; durability is the
// recorder's problem, so a slow database never stalls the editing surface.
type IngestHandler struct {
	repo          store.Repository
	registry      *recorder.Registry
	cfg           *config.Config
	allowedOrigin string
	isDev         bool
}

// NewIngestHandler creates the live capture endpoint handler.
func NewIngestHandler(repo store.Repository, registry *recorder.Registry, cfg *config.Config) *IngestHandler {
	return &IngestHandler{
		repo:          repo,
		registry:      registry,
		cfg:           cfg,
		allowedOrigin: cfg.FrontendURL,
		isDev:         cfg.IsDevelopment(),
	}
}

// ingestMessage is one editor action on the wire.
type ingestMessage struct {
	Type          string           `json:"type"` // "change", "cursor", "selection"
	Range         *domain.Range    `json:"range,omitempty"`
	Text          string           `json:"text,omitempty"`
	DeletedLength int              `json:"deleted_length,omitempty"`
	Position      *domain.Position `json:"position,omitempty"`
}

// ServeHTTP upgrades to WebSocket and pumps editor events into a recorder
// until the client disconnects. Disconnect triggers the recorder's final
// best-effort flush.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := domain.SessionKey{
		CandidateID:  identity.CandidateIDFromContext(r.Context()),
		AssessmentID: identity.AssessmentIDFromContext(r.Context()),
		QuestionID:   r.URL.Query().Get("question_id"),
	}
	if !key.Valid() {
		http.Error(w, "assessment_id and question_id are required", http.StatusBadRequest)
		return
	}

	if !checkOrigin(r, h.allowedOrigin, h.isDev) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("failed to accept ingest WebSocket", "error", err, "session_key", key.String())
		return
	}
	defer func() {
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
	}()

	rec := recorder.New(key, h.repo, recorder.Config{
		FlushInterval:  h.cfg.FlushInterval,
		PauseThreshold: h.cfg.PauseThreshold,
	}, slog.Default())
	h.registry.Register(rec)
	defer func() {
		h.registry.Unregister(rec)
		rec.Close()
	}()

	slog.Info("ingest session opened", "session_key", key.String(), "ip", r.RemoteAddr)

	for {
		_, data, err := ws.Read(r.Context())
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				slog.Info("ingest session closed", "session_key", key.String())
			} else {
				slog.Warn("ingest read error", "session_key", key.String(), "error", err)
			}
			return
		}

		var msg ingestMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("dropping malformed ingest message", "session_key", key.String(), "error", err)
			continue
		}

		switch msg.Type {
		case "change":
			if msg.Range == nil {
				continue
			}
			rec.RecordChange(*msg.Range, msg.Text, msg.DeletedLength)
		case "cursor":
			if msg.Position == nil {
				continue
			}
			rec.RecordCursor(*msg.Position)
		case "selection":
			if msg.Range == nil {
				continue
			}
			rec.RecordSelection(*msg.Range)
		default:
			slog.Debug("unknown ingest message type", "type", msg.Type)
		}
	}
}

// checkOrigin allows same-host and configured-frontend origins. Development
// mode accepts anything, matching local tooling on arbitrary ports.
func checkOrigin(r *http.Request, allowedOrigin string, isDev bool) bool {
	if isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	if allowedOrigin != "" {
		if a, err := url.Parse(allowedOrigin); err == nil && strings.EqualFold(u.Host, a.Host) {
			return true
		}
	}
	return false
}
