// Package domain contains core domain types for the hirebench platform.
package domain

// EventKind identifies the type of an EditorEvent.
type EventKind string

const (
	KindTextChange      EventKind = "text_change"
	KindCursorMove      EventKind = "cursor_move"
	KindSelectionChange EventKind = "selection_change"
	KindPause           EventKind = "pause"
	KindRunResult       EventKind = "run_result"
)

// Position is a 1-based line/column location in a document.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is the span of text between Start (inclusive) and End (exclusive).
// An empty range (Start == End) identifies a pure insertion point.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// IsEmpty returns true if the range covers no characters.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// EditorEvent is one observed or derived action in a session's event log.
// Timestamps are milliseconds and non-decreasing within a session; events
// with equal timestamps keep their insertion order. Payload fields are
// populated according to Kind and omitted otherwise.
type EditorEvent struct {
	Timestamp int64     `json:"ts"`
	Kind      EventKind `json:"kind"`

	// KindTextChange: the span being replaced and its replacement.
	Range         *Range `json:"range,omitempty"`
	InsertedText  string `json:"inserted_text,omitempty"`
	DeletedLength int    `json:"deleted_length,omitempty"`

	// KindCursorMove.
	Position *Position `json:"position,omitempty"`

	// KindPause: synthesized when the gap since the previous text change
	// exceeded the idle threshold.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// KindRunResult: attached post-hoc from the scoring subsystem.
	Verdict Verdict  `json:"verdict,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}
