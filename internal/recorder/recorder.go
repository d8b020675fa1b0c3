// Package recorder captures live editing activity and delivers it durably
// in ordered batches.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hirebench/hirebench/internal/domain"
)

// Sink receives ordered event batches for durable, append-only storage.
// Delivery is at-least-once: a batch whose delivery fails is retried whole,
// so the sink must tolerate duplicates.
type Sink interface {
	AppendEvents(ctx context.Context, key domain.SessionKey, batch []domain.EditorEvent) error
}

// Config tunes recorder behavior. Zero values fall back to the defaults the
// editor surface was calibrated against (3s flush, 10s pause gap).
type Config struct {
	FlushInterval  time.Duration
	PauseThreshold time.Duration
}

const (
	defaultFlushInterval  = 3 * time.Second
	defaultPauseThreshold = 10 * time.Second
	teardownFlushTimeout  = 2 * time.Second
)

// Recorder buffers one session's events in memory and flushes them on a
// fixed interval. Record calls never block on I/O; delivery happens on the
// flush goroutine. One Recorder instance per live session, never shared.
type Recorder struct {
	key    domain.SessionKey
	sink   Sink
	cfg    Config
	logger *slog.Logger
	nowMs  func() int64

	mu           sync.Mutex
	buf          []domain.EditorEvent
	lastChangeMs int64 // timestamp of the previous text change
	hasChange    bool  // whether any text change has been recorded
	lastActivity time.Time

	// flushMu serializes flush attempts so a slow delivery and the next
	// tick cannot interleave batches out of order.
	flushMu sync.Mutex

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a recorder for one session and starts its flush loop.
func New(key domain.SessionKey, sink Sink, cfg Config, logger *slog.Logger) *Recorder {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.PauseThreshold <= 0 {
		cfg.PauseThreshold = defaultPauseThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		key:          key,
		sink:         sink,
		cfg:          cfg,
		logger:       logger,
		nowMs:        func() int64 { return time.Now().UnixMilli() },
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}

	r.wg.Add(1)
	go r.flushLoop()

	return r
}

// Key returns the session this recorder belongs to.
func (r *Recorder) Key() domain.SessionKey {
	return r.key
}

// RecordChange appends a text-change event. If the gap since the previous
// text change exceeds the pause threshold, a pause annotation is inserted
// immediately before it in the same buffer.
func (r *Recorder) RecordChange(rng domain.Range, insertedText string, deletedLength int) {
	now := r.nowMs()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hasChange {
		if gap := now - r.lastChangeMs; gap >= r.cfg.PauseThreshold.Milliseconds() {
			r.buf = append(r.buf, domain.EditorEvent{
				Timestamp:  now,
				Kind:       domain.KindPause,
				DurationMs: gap,
			})
		}
	}

	r.buf = append(r.buf, domain.EditorEvent{
		Timestamp:     now,
		Kind:          domain.KindTextChange,
		Range:         &rng,
		InsertedText:  insertedText,
		DeletedLength: deletedLength,
	})
	r.lastChangeMs = now
	r.hasChange = true
	r.lastActivity = time.Now()
}

// RecordCursor appends a cursor-move event.
func (r *Recorder) RecordCursor(pos domain.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, domain.EditorEvent{
		Timestamp: r.nowMs(),
		Kind:      domain.KindCursorMove,
		Position:  &pos,
	})
	r.lastActivity = time.Now()
}

// RecordSelection appends a selection-change event.
func (r *Recorder) RecordSelection(rng domain.Range) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, domain.EditorEvent{
		Timestamp: r.nowMs(),
		Kind:      domain.KindSelectionChange,
		Range:     &rng,
	})
	r.lastActivity = time.Now()
}

// LastActivity returns when an event was last recorded, for idle sweeping.
func (r *Recorder) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Pending returns the number of buffered, undelivered events.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

func (r *Recorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.Flush(context.Background()); err != nil {
				r.logger.Warn("event flush failed, batch re-buffered",
					"session_key", r.key.String(), "error", err)
			}
		case <-r.done:
			return
		}
	}
}

// Flush swaps the buffer out and delivers it. On failure the batch is
// prepended back in front of anything recorded meanwhile, so the next
// attempt sends every event exactly once in original order.
func (r *Recorder) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	if len(r.buf) == 0 {
		r.mu.Unlock()
		return nil
	}
	batch := r.buf
	r.buf = nil
	r.mu.Unlock()

	if err := r.sink.AppendEvents(ctx, r.key, batch); err != nil {
		r.mu.Lock()
		r.buf = append(batch, r.buf...)
		r.mu.Unlock()
		return err
	}
	return nil
}

// Close stops the flush loop and makes one best-effort final delivery.
// The session is ending, so a failure here is logged and the batch dropped
// rather than retried.
func (r *Recorder) Close() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), teardownFlushTimeout)
		defer cancel()
		if err := r.Flush(ctx); err != nil {
			r.logger.Warn("final event flush failed, events dropped",
				"session_key", r.key.String(), "error", err)
		}
	})
}
