package api

import (
	"context"
	"net/http"
	"time"
)

// Health reports service and dependency status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "ok"
	if err := h.repo.Ping(ctx); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}

	JSON(w, code, map[string]interface{}{
		"status":        status,
		"database":      dbStatus,
		"judge_enabled": h.judge != nil,
		"genai_enabled": h.gen != nil,
	})
}
