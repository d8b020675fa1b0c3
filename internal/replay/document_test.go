package replay

import (
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/hirebench/hirebench/internal/domain"
)

func change(ts int64, sl, sc, el, ec int, text string) domain.EditorEvent {
	return domain.EditorEvent{
		Timestamp: ts,
		Kind:      domain.KindTextChange,
		Range: &domain.Range{
			Start: domain.Position{Line: sl, Column: sc},
			End:   domain.Position{Line: el, Column: ec},
		},
		InsertedText: text,
	}
}

func TestReconstructEmptyLog(t *testing.T) {
	doc := ReconstructUpTo(nil, 1000)
	if doc.Text() != "" {
		t.Errorf("Expected empty document, got %q", doc.Text())
	}
}

func TestReconstructTargetBeforeFirstEvent(t *testing.T) {
	events := []domain.EditorEvent{change(100, 1, 1, 1, 1, "hello")}
	doc := ReconstructUpTo(events, 50)
	if doc.Text() != "" {
		t.Errorf("Expected empty document before first event, got %q", doc.Text())
	}
}

func TestReconstructSequentialInserts(t *testing.T) {
	events := []domain.EditorEvent{
		change(0, 1, 1, 1, 1, "a"),
		change(1000, 1, 2, 1, 2, "b"),
		change(20000, 1, 3, 1, 3, "c"),
	}

	tests := []struct {
		target int64
		want   string
	}{
		{0, "a"},
		{500, "a"},
		{1000, "ab"},
		{19999, "ab"},
		{20000, "abc"},
		{99999, "abc"},
	}
	for _, tt := range tests {
		doc := ReconstructUpTo(events, tt.target)
		if doc.Text() != tt.want {
			t.Errorf("ReconstructUpTo(%d) = %q, want %q", tt.target, doc.Text(), tt.want)
		}
	}
}

func TestReconstructMultilineSplice(t *testing.T) {
	events := []domain.EditorEvent{
		change(0, 1, 1, 1, 1, "first\nsecond\nthird"),
		// Replace "second" with two lines.
		change(100, 2, 1, 2, 7, "middle\nrows"),
		// Delete the trailing "third" line including its newline.
		change(200, 3, 5, 4, 6, ""),
	}
	doc := ReconstructUpTo(events, 200)
	if got, want := doc.Text(), "first\nmiddle\nrows"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestReconstructDeletion(t *testing.T) {
	events := []domain.EditorEvent{
		change(0, 1, 1, 1, 1, "hello world"),
		change(100, 1, 6, 1, 12, ""),
	}
	doc := ReconstructUpTo(events, 100)
	if doc.Text() != "hello" {
		t.Errorf("Expected %q, got %q", "hello", doc.Text())
	}
}

func TestReconstructSkipsMalformedEvents(t *testing.T) {
	events := []domain.EditorEvent{
		change(0, 1, 1, 1, 1, "ok"),
		{Timestamp: 50, Kind: domain.KindTextChange}, // no range
		{Timestamp: 60, Kind: domain.KindCursorMove}, // no position
		change(100, 1, 3, 1, 3, "!"),
	}
	doc := ReconstructUpTo(events, 100)
	if doc.Text() != "ok!" {
		t.Errorf("Expected %q, got %q", "ok!", doc.Text())
	}
}

func TestReconstructDuplicateTimestampsInsertionOrder(t *testing.T) {
	events := []domain.EditorEvent{
		change(100, 1, 1, 1, 1, "a"),
		change(100, 1, 2, 1, 2, "b"),
		change(100, 1, 3, 1, 3, "c"),
	}
	doc := ReconstructUpTo(PrepareLog(events), 0)
	if doc.Text() != "abc" {
		t.Errorf("Expected %q, got %q", "abc", doc.Text())
	}
}

func TestCursorAndSelectionTracking(t *testing.T) {
	doc := NewDocument()
	doc.Apply(change(0, 1, 1, 1, 1, "hello\nworld"))
	doc.Apply(domain.EditorEvent{
		Timestamp: 10,
		Kind:      domain.KindCursorMove,
		Position:  &domain.Position{Line: 2, Column: 3},
	})
	if got := doc.Cursor(); got.Line != 2 || got.Column != 3 {
		t.Errorf("Expected cursor at 2:3, got %d:%d", got.Line, got.Column)
	}

	doc.Apply(domain.EditorEvent{
		Timestamp: 20,
		Kind:      domain.KindSelectionChange,
		Range: &domain.Range{
			Start: domain.Position{Line: 1, Column: 1},
			End:   domain.Position{Line: 2, Column: 6},
		},
	})
	sel := doc.Selection()
	if sel == nil || sel.Start.Line != 1 || sel.End.Column != 6 {
		t.Errorf("Expected selection 1:1-2:6, got %+v", sel)
	}
}

func TestPrepareLogSortsAndRebases(t *testing.T) {
	events := []domain.EditorEvent{
		change(5000, 1, 2, 1, 2, "b"),
		change(3000, 1, 1, 1, 1, "a"),
	}
	prepared := PrepareLog(events)
	if prepared[0].Timestamp != 0 || prepared[1].Timestamp != 2000 {
		t.Errorf("Expected rebased timestamps [0 2000], got [%d %d]",
			prepared[0].Timestamp, prepared[1].Timestamp)
	}
	if prepared[0].InsertedText != "a" {
		t.Errorf("Expected timestamp sort to put %q first, got %q", "a", prepared[0].InsertedText)
	}
	// Input untouched.
	if events[0].Timestamp != 5000 {
		t.Errorf("PrepareLog mutated its input")
	}
}

// refSplice applies an edit to a flat string, computing byte offsets from
// line/column by scanning. Deliberately independent of Document's
// line-slice implementation.
func refSplice(text string, r domain.Range, inserted string) string {
	start := refOffset(text, r.Start)
	end := refOffset(text, r.End)
	return text[:start] + inserted + text[end:]
}

func refOffset(text string, p domain.Position) int {
	lines := strings.Split(text, "\n")
	offset := 0
	for i := 0; i < p.Line-1; i++ {
		offset += len(lines[i]) + 1
	}
	return offset + p.Column - 1
}

// Replay is a pure left-fold: for any sequence of valid edits, rebuilding
// from empty matches a reference string-splice applied edit by edit.
func TestReconstructMatchesReferenceSplice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ref := ""
		var events []domain.EditorEvent
		ts := int64(0)

		numEdits := rapid.IntRange(1, 50).Draw(t, "num_edits")
		for i := 0; i < numEdits; i++ {
			lines := strings.Split(ref, "\n")
			sl := rapid.IntRange(1, len(lines)).Draw(t, "start_line")
			sc := rapid.IntRange(1, len(lines[sl-1])+1).Draw(t, "start_col")
			el := rapid.IntRange(sl, len(lines)).Draw(t, "end_line")
			ecMin := 1
			if el == sl {
				ecMin = sc
			}
			ec := rapid.IntRange(ecMin, len(lines[el-1])+1).Draw(t, "end_col")
			text := rapid.StringMatching(`[a-z\n]{0,8}`).Draw(t, "inserted")

			r := domain.Range{
				Start: domain.Position{Line: sl, Column: sc},
				End:   domain.Position{Line: el, Column: ec},
			}
			ref = refSplice(ref, r, text)
			events = append(events, domain.EditorEvent{
				Timestamp:    ts,
				Kind:         domain.KindTextChange,
				Range:        &r,
				InsertedText: text,
			})
			ts += rapid.Int64Range(0, 5000).Draw(t, "gap")
		}

		doc := ReconstructUpTo(events, ts)
		if doc.Text() != ref {
			t.Fatalf("fold mismatch after %d edits:\n got %q\nwant %q", numEdits, doc.Text(), ref)
		}

		// Re-running the same fold yields the same result.
		again := ReconstructUpTo(events, ts)
		if again.Text() != doc.Text() {
			t.Fatalf("fold is not deterministic: %q vs %q", again.Text(), doc.Text())
		}
	})
}
