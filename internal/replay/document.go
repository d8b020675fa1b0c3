// Package replay reconstructs recorded editing sessions and drives their
// playback against a virtual clock.
package replay

import (
	"sort"
	"strings"

	"github.com/hirebench/hirebench/internal/domain"
)

// Document is a line-oriented text buffer mutated by splice operations.
// Applying a session's text changes in order from an empty document yields
// exactly the content a live editor held at the corresponding moment.
type Document struct {
	lines     []string
	cursor    domain.Position
	selection *domain.Range
}

// NewDocument returns an empty single-line document.
func NewDocument() *Document {
	return &Document{
		lines:  []string{""},
		cursor: domain.Position{Line: 1, Column: 1},
	}
}

// Text returns the full document content.
func (d *Document) Text() string {
	return strings.Join(d.lines, "\n")
}

// Cursor returns the last observed cursor position.
func (d *Document) Cursor() domain.Position {
	return d.cursor
}

// Selection returns the last observed selection, or nil if none.
func (d *Document) Selection() *domain.Range {
	if d.selection == nil {
		return nil
	}
	sel := *d.selection
	return &sel
}

// Clone returns an independent copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{
		lines:  make([]string, len(d.lines)),
		cursor: d.cursor,
	}
	copy(c.lines, d.lines)
	if d.selection != nil {
		sel := *d.selection
		c.selection = &sel
	}
	return c
}

// Apply applies a single event. Text changes splice the buffer; cursor and
// selection events update transient view state only. Events with a missing
// payload for their kind are ignored so a damaged log degrades to a gap in
// the replay instead of aborting it.
func (d *Document) Apply(ev domain.EditorEvent) {
	switch ev.Kind {
	case domain.KindTextChange:
		if ev.Range == nil {
			return
		}
		d.splice(*ev.Range, ev.InsertedText)
	case domain.KindCursorMove:
		if ev.Position == nil {
			return
		}
		d.cursor = d.clamp(*ev.Position)
	case domain.KindSelectionChange:
		if ev.Range == nil {
			return
		}
		sel := domain.Range{Start: d.clamp(ev.Range.Start), End: d.clamp(ev.Range.End)}
		d.selection = &sel
	}
}

// splice replaces the given range with text. Positions are clamped into the
// current document bounds; a range whose start lies after its end is ignored.
func (d *Document) splice(r domain.Range, text string) {
	start := d.clamp(r.Start)
	end := d.clamp(r.End)
	if start.Line > end.Line || (start.Line == end.Line && start.Column > end.Column) {
		return
	}

	prefix := d.lines[start.Line-1][:start.Column-1]
	suffix := d.lines[end.Line-1][end.Column-1:]

	inserted := strings.Split(text, "\n")
	mid := make([]string, len(inserted))
	copy(mid, inserted)
	mid[0] = prefix + mid[0]
	mid[len(mid)-1] = mid[len(mid)-1] + suffix

	rebuilt := make([]string, 0, start.Line-1+len(mid)+len(d.lines)-end.Line)
	rebuilt = append(rebuilt, d.lines[:start.Line-1]...)
	rebuilt = append(rebuilt, mid...)
	rebuilt = append(rebuilt, d.lines[end.Line:]...)
	d.lines = rebuilt

	// Track the cursor at the end of the inserted text, as editors do.
	if len(inserted) == 1 {
		d.cursor = domain.Position{Line: start.Line, Column: start.Column + len(inserted[0])}
	} else {
		d.cursor = domain.Position{
			Line:   start.Line + len(inserted) - 1,
			Column: len(inserted[len(inserted)-1]) + 1,
		}
	}
	d.selection = nil
}

func (d *Document) clamp(p domain.Position) domain.Position {
	if p.Line < 1 {
		p.Line = 1
	}
	if p.Line > len(d.lines) {
		p.Line = len(d.lines)
	}
	if p.Column < 1 {
		p.Column = 1
	}
	if max := len(d.lines[p.Line-1]) + 1; p.Column > max {
		p.Column = max
	}
	return p
}

// PrepareLog sorts a raw event log into replay order and normalizes
// timestamps to be relative to the first event. The sort is stable so
// duplicate timestamps keep their insertion order. The input is not modified.
func PrepareLog(events []domain.EditorEvent) []domain.EditorEvent {
	prepared := make([]domain.EditorEvent, len(events))
	copy(prepared, events)
	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].Timestamp < prepared[j].Timestamp
	})
	if len(prepared) == 0 {
		return prepared
	}
	base := prepared[0].Timestamp
	for i := range prepared {
		prepared[i].Timestamp -= base
	}
	return prepared
}

// LogStart returns the absolute timestamp of the earliest event, or 0 for an
// empty log. Used to anchor external run history onto the relative timeline.
func LogStart(events []domain.EditorEvent) int64 {
	if len(events) == 0 {
		return 0
	}
	start := events[0].Timestamp
	for _, ev := range events[1:] {
		if ev.Timestamp < start {
			start = ev.Timestamp
		}
	}
	return start
}

// ReconstructUpTo folds every text change with a timestamp at or before
// targetMs into a fresh document. Events must already be in replay order
// (see PrepareLog). A target before the first event yields an empty document.
func ReconstructUpTo(events []domain.EditorEvent, targetMs int64) *Document {
	doc := NewDocument()
	for _, ev := range events {
		if ev.Timestamp > targetMs {
			break
		}
		doc.Apply(ev)
	}
	return doc
}
