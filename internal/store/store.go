// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/hirebench/hirebench/internal/domain"
)

// Repository defines the interface for persisting assessment data. Event
// storage is append-only and order-preserving within a batch; the replay
// engine re-sorts by timestamp on load, so storage order only needs to keep
// each batch's relative order.
type Repository interface {
	// AppendEvents durably appends an ordered batch to a session's log,
	// creating the session row on first delivery. The whole batch is
	// written atomically.
	AppendEvents(ctx context.Context, key domain.SessionKey, batch []domain.EditorEvent) error

	// LoadEventLog returns a session's full event history in storage order.
	LoadEventLog(ctx context.Context, key domain.SessionKey) ([]domain.EditorEvent, error)

	// GetSession returns session metadata, or nil if no events were ever
	// recorded for the key.
	GetSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error)

	// LoadRunHistory returns the submission timeline for a session, oldest
	// first. Used only for marker overlay, never for reconstruction.
	LoadRunHistory(ctx context.Context, key domain.SessionKey) ([]domain.RunRecord, error)

	// InsertSubmission stores one scored run.
	InsertSubmission(ctx context.Context, sub *domain.Submission) error

	// ListSubmissions returns a session's submissions, oldest first.
	ListSubmissions(ctx context.Context, key domain.SessionKey) ([]*domain.Submission, error)

	// CreateQuestion stores a new question.
	CreateQuestion(ctx context.Context, q *domain.Question) error

	// GetQuestion retrieves a question by ID, or nil if absent.
	GetQuestion(ctx context.Context, id string) (*domain.Question, error)

	// ListQuestions returns all questions, newest first.
	ListQuestions(ctx context.Context) ([]*domain.Question, error)

	// UpsertDraft saves a candidate's autosaved working copy.
	UpsertDraft(ctx context.Context, d *domain.Draft) error

	// GetDraft retrieves the autosaved working copy, or nil if absent.
	GetDraft(ctx context.Context, key domain.SessionKey) (*domain.Draft, error)

	// CleanupStaleDrafts removes drafts untouched for longer than ttl.
	CleanupStaleDrafts(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
