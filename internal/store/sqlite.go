package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hirebench/hirebench/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL so replay reads never block on an in-flight flush transaction,
	// and a busy timeout on every pooled connection. modernc's driver takes
	// pragmas in _pragma=name(value) form.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		assessment_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(candidate_id, assessment_id, question_id)
	);

	CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(session_id),
		ts_ms INTEGER NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id, id);

	CREATE TABLE IF NOT EXISTS questions (
		question_id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		statement TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT '',
		test_cases TEXT NOT NULL,
		scaffolds TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS drafts (
		candidate_id TEXT NOT NULL,
		assessment_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (candidate_id, assessment_id, question_id)
	);
	CREATE INDEX IF NOT EXISTS idx_drafts_updated ON drafts(updated_at);

	CREATE TABLE IF NOT EXISTS submissions (
		submission_id TEXT PRIMARY KEY,
		candidate_id TEXT NOT NULL,
		assessment_id TEXT NOT NULL,
		question_id TEXT NOT NULL,
		language TEXT NOT NULL,
		source TEXT NOT NULL,
		verdict TEXT NOT NULL,
		score REAL NOT NULL DEFAULT 0,
		time_ms INTEGER NOT NULL DEFAULT 0,
		memory_kb INTEGER NOT NULL DEFAULT 0,
		stdout TEXT NOT NULL DEFAULT '',
		stderr TEXT NOT NULL DEFAULT '',
		compile_output TEXT NOT NULL DEFAULT '',
		passed_tests INTEGER NOT NULL DEFAULT 0,
		total_tests INTEGER NOT NULL DEFAULT 0,
		submitted_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_key
		ON submissions(candidate_id, assessment_id, question_id, submitted_at_ms);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// AppendEvents writes one ordered batch inside a transaction, creating the
// session row on first delivery. Rowid order preserves batch order.
func (s *SQLiteStore) AppendEvents(ctx context.Context, key domain.SessionKey, batch []domain.EditorEvent) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	sessionID, err := ensureSessionTx(ctx, tx, key)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO session_events (session_id, ts_ms, kind, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for _, ev := range batch {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, ev.Timestamp, string(ev.Kind), string(payload)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		time.Now().Unix(), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append tx: %w", err)
	}
	return nil
}

func ensureSessionTx(ctx context.Context, tx *sql.Tx, key domain.SessionKey) (string, error) {
	var sessionID string
	err := tx.QueryRowContext(ctx,
		`SELECT session_id FROM sessions WHERE candidate_id = ? AND assessment_id = ? AND question_id = ?`,
		key.CandidateID, key.AssessmentID, key.QuestionID).Scan(&sessionID)
	if err == nil {
		return sessionID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("lookup session: %w", err)
	}

	sessionID = uuid.NewString()
	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (session_id, candidate_id, assessment_id, question_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, key.CandidateID, key.AssessmentID, key.QuestionID, now, now); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, nil
}

// LoadEventLog returns the full event history in storage order.
func (s *SQLiteStore) LoadEventLog(ctx context.Context, key domain.SessionKey) ([]domain.EditorEvent, error) {
	query := `
		SELECT e.payload
		FROM session_events e
		JOIN sessions s ON s.session_id = e.session_id
		WHERE s.candidate_id = ? AND s.assessment_id = ? AND s.question_id = ?
		ORDER BY e.id`

	rows, err := s.db.QueryContext(ctx, query, key.CandidateID, key.AssessmentID, key.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("query event log: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close event log rows", "error", closeErr)
		}
	}()

	var events []domain.EditorEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		var ev domain.EditorEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// A single corrupt row costs one event, not the whole replay.
			slog.Warn("skipping undecodable event row", "session_key", key.String(), "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event log: %w", err)
	}

	return events, nil
}

// GetSession returns session metadata, or nil if absent.
func (s *SQLiteStore) GetSession(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	query := `
		SELECT s.session_id, s.language, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM session_events e WHERE e.session_id = s.session_id)
		FROM sessions s
		WHERE s.candidate_id = ? AND s.assessment_id = ? AND s.question_id = ?`

	row := s.db.QueryRowContext(ctx, query, key.CandidateID, key.AssessmentID, key.QuestionID)

	var sess domain.Session
	var createdAt, updatedAt int64
	err := row.Scan(&sess.ID, &sess.Language, &createdAt, &updatedAt, &sess.EventCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.Key = key
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	return &sess, nil
}

// LoadRunHistory returns the submission timeline, oldest first.
func (s *SQLiteStore) LoadRunHistory(ctx context.Context, key domain.SessionKey) ([]domain.RunRecord, error) {
	query := `
		SELECT submitted_at_ms, verdict, score
		FROM submissions
		WHERE candidate_id = ? AND assessment_id = ? AND question_id = ?
		ORDER BY submitted_at_ms`

	rows, err := s.db.QueryContext(ctx, query, key.CandidateID, key.AssessmentID, key.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close run history rows", "error", closeErr)
		}
	}()

	var runs []domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		if err := rows.Scan(&run.TimestampMs, &run.Verdict, &run.Score); err != nil {
			return nil, fmt.Errorf("scan run history row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run history: %w", err)
	}

	return runs, nil
}

// InsertSubmission stores one scored run.
func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub *domain.Submission) error {
	query := `
		INSERT INTO submissions (
			submission_id, candidate_id, assessment_id, question_id, language, source,
			verdict, score, time_ms, memory_kb, stdout, stderr, compile_output,
			passed_tests, total_tests, submitted_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		sub.ID, sub.Key.CandidateID, sub.Key.AssessmentID, sub.Key.QuestionID,
		sub.Language, sub.Source, string(sub.Verdict), sub.Score, sub.TimeMs, sub.MemoryKB,
		sub.Stdout, sub.Stderr, sub.CompileOutput, sub.PassedTests, sub.TotalTests,
		sub.SubmittedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// ListSubmissions returns a session's submissions, oldest first.
func (s *SQLiteStore) ListSubmissions(ctx context.Context, key domain.SessionKey) ([]*domain.Submission, error) {
	query := `
		SELECT submission_id, language, source, verdict, score, time_ms, memory_kb,
		       stdout, stderr, compile_output, passed_tests, total_tests, submitted_at_ms
		FROM submissions
		WHERE candidate_id = ? AND assessment_id = ? AND question_id = ?
		ORDER BY submitted_at_ms`

	rows, err := s.db.QueryContext(ctx, query, key.CandidateID, key.AssessmentID, key.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close submission rows", "error", closeErr)
		}
	}()

	var subs []*domain.Submission
	for rows.Next() {
		var sub domain.Submission
		var verdict string
		var submittedAtMs int64
		if err := rows.Scan(
			&sub.ID, &sub.Language, &sub.Source, &verdict, &sub.Score, &sub.TimeMs, &sub.MemoryKB,
			&sub.Stdout, &sub.Stderr, &sub.CompileOutput, &sub.PassedTests, &sub.TotalTests, &submittedAtMs,
		); err != nil {
			return nil, fmt.Errorf("scan submission row: %w", err)
		}
		sub.Key = key
		sub.Verdict = domain.Verdict(verdict)
		sub.SubmittedAt = time.UnixMilli(submittedAtMs)
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}

	return subs, nil
}

// CreateQuestion stores a new question.
func (s *SQLiteStore) CreateQuestion(ctx context.Context, q *domain.Question) error {
	testCases, err := json.Marshal(q.TestCases)
	if err != nil {
		return fmt.Errorf("marshal test cases: %w", err)
	}
	scaffolds, err := json.Marshal(q.Scaffolds)
	if err != nil {
		return fmt.Errorf("marshal scaffolds: %w", err)
	}

	query := `
		INSERT INTO questions (question_id, title, statement, topic, difficulty,
			test_cases, scaffolds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		q.ID, q.Title, q.Statement, q.Topic, q.Difficulty,
		string(testCases), string(scaffolds),
		q.CreatedAt.Unix(), q.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// GetQuestion retrieves a question by ID, or nil if absent.
func (s *SQLiteStore) GetQuestion(ctx context.Context, id string) (*domain.Question, error) {
	query := `
		SELECT question_id, title, statement, topic, difficulty, test_cases, scaffolds,
		       created_at, updated_at
		FROM questions WHERE question_id = ?`

	return scanQuestion(s.db.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*domain.Question, error) {
	var q domain.Question
	var testCases, scaffolds string
	var createdAt, updatedAt int64

	err := row.Scan(&q.ID, &q.Title, &q.Statement, &q.Topic, &q.Difficulty,
		&testCases, &scaffolds, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan question row: %w", err)
	}

	if err := json.Unmarshal([]byte(testCases), &q.TestCases); err != nil {
		return nil, fmt.Errorf("decode test cases: %w", err)
	}
	if err := json.Unmarshal([]byte(scaffolds), &q.Scaffolds); err != nil {
		return nil, fmt.Errorf("decode scaffolds: %w", err)
	}
	q.CreatedAt = time.Unix(createdAt, 0)
	q.UpdatedAt = time.Unix(updatedAt, 0)
	return &q, nil
}

// ListQuestions returns all questions, newest first.
func (s *SQLiteStore) ListQuestions(ctx context.Context) ([]*domain.Question, error) {
	query := `
		SELECT question_id, title, statement, topic, difficulty, test_cases, scaffolds,
		       created_at, updated_at
		FROM questions ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close question rows", "error", closeErr)
		}
	}()

	var questions []*domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return questions, nil
}

// UpsertDraft saves a candidate's autosaved working copy.
func (s *SQLiteStore) UpsertDraft(ctx context.Context, d *domain.Draft) error {
	query := `
		INSERT INTO drafts (candidate_id, assessment_id, question_id, language, source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(candidate_id, assessment_id, question_id) DO UPDATE SET
			language = excluded.language,
			source = excluded.source,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		d.Key.CandidateID, d.Key.AssessmentID, d.Key.QuestionID,
		d.Language, d.Source, d.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert draft: %w", err)
	}
	return nil
}

// GetDraft retrieves the autosaved working copy, or nil if absent.
func (s *SQLiteStore) GetDraft(ctx context.Context, key domain.SessionKey) (*domain.Draft, error) {
	query := `
		SELECT language, source, updated_at
		FROM drafts
		WHERE candidate_id = ? AND assessment_id = ? AND question_id = ?`

	row := s.db.QueryRowContext(ctx, query, key.CandidateID, key.AssessmentID, key.QuestionID)

	var d domain.Draft
	var updatedAt int64
	err := row.Scan(&d.Language, &d.Source, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft row: %w", err)
	}

	d.Key = key
	d.UpdatedAt = time.Unix(updatedAt, 0)
	return &d, nil
}

// CleanupStaleDrafts removes drafts untouched for longer than ttl.
func (s *SQLiteStore) CleanupStaleDrafts(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale drafts: %w", err)
	}
	return result.RowsAffected()
}
