package replay

import "github.com/hirebench/hirebench/internal/domain"

// PauseBand marks a gap in editing activity that exceeded the idle threshold.
// Bands are derived fresh from text-change timestamps on every load; any
// pause events the recorder injected into the stream are ignored here so the
// two derivations cannot drift apart.
type PauseBand struct {
	StartMs    int64 `json:"start_ms"`
	EndMs      int64 `json:"end_ms"`
	DurationMs int64 `json:"duration_ms"`
}

// PauseBands scans text-change events in order and emits a band for every
// adjacent pair whose gap is at or above thresholdMs. Cursor and selection
// noise between the pair does not break a band.
func PauseBands(events []domain.EditorEvent, thresholdMs int64) []PauseBand {
	var bands []PauseBand
	var prev int64
	seen := false
	for _, ev := range events {
		if ev.Kind != domain.KindTextChange {
			continue
		}
		if seen {
			if gap := ev.Timestamp - prev; gap >= thresholdMs {
				bands = append(bands, PauseBand{
					StartMs:    prev,
					EndMs:      ev.Timestamp,
					DurationMs: gap,
				})
			}
		}
		prev = ev.Timestamp
		seen = true
	}
	return bands
}

// RunMarker anchors a scoring verdict onto the replay timeline.
type RunMarker struct {
	TimestampMs int64          `json:"ts_ms"`
	Verdict     domain.Verdict `json:"verdict"`
	Score       float64        `json:"score"`
}

// DisplayVerdict collapses a verdict into the three classes the timeline
// renders. Runtime errors display as failures.
func DisplayVerdict(v domain.Verdict) domain.Verdict {
	switch v {
	case domain.VerdictPassed:
		return domain.VerdictPassed
	case domain.VerdictCompileError:
		return domain.VerdictCompileError
	default:
		return domain.VerdictFailed
	}
}

// RunMarkers converts an externally sourced run history into timeline
// markers. Absolute timestamps are rebased against startMs and clamped into
// [0, durationMs]; runs recorded outside the session window still appear,
// pinned to the nearest edge.
func RunMarkers(history []domain.RunRecord, startMs, durationMs int64) []RunMarker {
	markers := make([]RunMarker, 0, len(history))
	for _, run := range history {
		ts := run.TimestampMs - startMs
		if ts < 0 {
			ts = 0
		}
		if ts > durationMs {
			ts = durationMs
		}
		markers = append(markers, RunMarker{
			TimestampMs: ts,
			Verdict:     DisplayVerdict(run.Verdict),
			Score:       run.Score,
		})
	}
	return markers
}
