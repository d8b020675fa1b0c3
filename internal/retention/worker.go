// Package retention runs background cleanup of idle recorders and stale
// drafts.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/hirebench/hirebench/internal/config"
	"github.com/hirebench/hirebench/internal/recorder"
	"github.com/hirebench/hirebench/internal/store"
)

const sweepInterval = time.Minute

// StartSweeper runs a background goroutine that periodically closes
// recorders with no editing activity (flushing their remaining events) and
// prunes drafts past their retention window. Event logs themselves are
// never deleted here; log retention is a storage policy.
func StartSweeper(ctx context.Context, repo store.Repository, registry *recorder.Registry, cfg *config.Config) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("retention sweeper started",
			"interval", sweepInterval, "session_ttl", cfg.SessionTTL, "draft_ttl", cfg.DraftTTL)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, registry, cfg)
			case <-ctx.Done():
				slog.Info("retention sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository, registry *recorder.Registry, cfg *config.Config) {
	if closed := registry.CloseIdle(cfg.SessionTTL); closed > 0 {
		slog.Info("closed idle recorders", "count", closed)
	}

	pruned, err := repo.CleanupStaleDrafts(ctx, cfg.DraftTTL)
	if err != nil {
		slog.Error("draft cleanup failed", "error", err)
		return
	}
	if pruned > 0 {
		slog.Info("pruned stale drafts", "count", pruned)
	}
}
