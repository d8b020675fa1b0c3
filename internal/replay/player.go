package replay

import (
	"sort"
	"sync"
	"time"

	"github.com/hirebench/hirebench/internal/domain"
)

// State is the playback state machine position.
type State string

const (
	// StateNoActivity means the session has no recorded events; playback
	// controls are inert.
	StateNoActivity State = "no_activity"
	StateStopped    State = "stopped"
	StatePlaying    State = "playing"
	StatePaused     State = "paused"
	StateEnded      State = "ended"
)

const defaultSnapshotEvery = 500

// Snapshot is a read-only view of the player, safe to poll at any rate.
// Sampling it never applies document edits.
type Snapshot struct {
	Text       string          `json:"text"`
	Cursor     domain.Position `json:"cursor"`
	Selection  *domain.Range   `json:"selection,omitempty"`
	ProgressMs int64           `json:"progress_ms"`
	DurationMs int64           `json:"duration_ms"`
	Speed      float64         `json:"speed"`
	State      State           `json:"state"`
	PauseBands []PauseBand     `json:"pause_bands"`
	RunMarkers []RunMarker     `json:"run_markers"`
}

// Player replays one session's event log against a virtual clock. The
// virtual clock is two reference points: the virtual time at the last state
// transition and the wall time of that transition. While playing,
//
//	virtual = base + (now - wallStart) * speed
//
// so pause, seek and speed changes rebase rather than accumulate drift.
// Document mutation happens exclusively on the timer-driven scheduling path,
// guaranteeing each edit is applied exactly once per pass regardless of how
// often the snapshot is sampled.
//
// A Player owns its document buffer outright; the event log it was built
// from is never modified.
type Player struct {
	mu sync.Mutex

	clock         Clock
	events        []domain.EditorEvent // replay order, relative timestamps
	stamps        []int64              // timestamps of events, for binary search
	snapshots     []*Document          // snapshots[i] = state after (i+1)*snapshotEvery events
	snapshotEvery int

	doc        *Document
	state      State
	index      int     // next event to apply
	base       float64 // virtual ms at last transition
	wallStart  time.Time
	speed      float64
	durationMs int64

	// generation invalidates in-flight timer callbacks: every transition
	// increments it, and a callback that captured a stale value is a no-op.
	generation uint64
	timer      Timer

	pauseBands []PauseBand
	runMarkers []RunMarker
}

// Option configures a Player.
type Option func(*Player)

// WithClock substitutes the wall clock, for deterministic tests.
func WithClock(c Clock) Option {
	return func(p *Player) { p.clock = c }
}

// WithSnapshotEvery sets how many events apart document snapshots are kept
// for seeking. Zero disables snapshots; seeks then rebuild from empty.
func WithSnapshotEvery(n int) Option {
	return func(p *Player) { p.snapshotEvery = n }
}

// NewPlayer builds a player for one session. The raw event log may be in
// storage order; it is sorted and rebased here, once, not per seek. The run
// history is an independent feed anchored on by timestamp only.
func NewPlayer(events []domain.EditorEvent, runs []domain.RunRecord, pauseThresholdMs int64, opts ...Option) *Player {
	p := &Player{
		clock:         realClock{},
		speed:         1,
		snapshotEvery: defaultSnapshotEvery,
	}
	for _, opt := range opts {
		opt(p)
	}

	startMs := LogStart(events)
	p.events = PrepareLog(events)
	p.stamps = make([]int64, len(p.events))
	for i, ev := range p.events {
		p.stamps[i] = ev.Timestamp
	}
	if n := len(p.stamps); n > 0 {
		p.durationMs = p.stamps[n-1]
	}

	p.pauseBands = PauseBands(p.events, pauseThresholdMs)
	p.runMarkers = RunMarkers(runs, startMs, p.durationMs)

	p.doc = NewDocument()
	if len(p.events) == 0 {
		p.state = StateNoActivity
	} else {
		p.state = StateStopped
		p.buildSnapshots()
	}
	return p
}

// buildSnapshots folds the log once, cloning the document every
// snapshotEvery events so seeks replay at most that many edits.
func (p *Player) buildSnapshots() {
	if p.snapshotEvery <= 0 {
		return
	}
	doc := NewDocument()
	for i, ev := range p.events {
		doc.Apply(ev)
		if (i+1)%p.snapshotEvery == 0 {
			p.snapshots = append(p.snapshots, doc.Clone())
		}
	}
}

// Play starts or resumes playback. From Ended the player resets first, so
// replaying a finished session starts from the beginning.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateNoActivity, StatePlaying:
		return
	case StateEnded:
		p.resetLocked()
	case StateStopped, StatePaused:
	}

	p.invalidateLocked()
	p.state = StatePlaying
	p.wallStart = p.clock.Now()
	p.advanceLocked()
}

// Pause freezes the virtual clock at its current value.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return
	}
	p.base = p.virtualLocked()
	p.state = StatePaused
	p.invalidateLocked()
}

// Stop rewinds to the beginning and clears the document.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateNoActivity {
		return
	}
	p.invalidateLocked()
	p.resetLocked()
	p.state = StateStopped
}

// SetSpeed changes the playback multiplier. While playing, elapsed wall time
// is first collapsed into the virtual base (freeze-and-rebase) so already
// scheduled offsets cannot fire at stale positions. Non-positive multipliers
// are ignored.
func (p *Player) SetSpeed(multiplier float64) {
	if multiplier <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePlaying {
		p.base = p.virtualLocked()
		p.wallStart = p.clock.Now()
		p.invalidateLocked()
		p.speed = multiplier
		p.advanceLocked()
		return
	}
	p.speed = multiplier
}

// Seek jumps to targetMs, clamped into [0, duration], and always lands
// paused. The event index is found by binary search over the timestamp
// array; the document is rebuilt from the nearest snapshot at or before it.
func (p *Player) Seek(targetMs int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateNoActivity {
		return
	}
	if targetMs < 0 {
		targetMs = 0
	}
	if targetMs > p.durationMs {
		targetMs = p.durationMs
	}

	p.invalidateLocked()

	// First index whose timestamp is strictly after the target; everything
	// before it has been "played".
	idx := sort.Search(len(p.stamps), func(i int) bool {
		return p.stamps[i] > targetMs
	})
	p.doc = p.rebuildTo(idx)
	p.index = idx
	p.base = float64(targetMs)
	p.wallStart = p.clock.Now()
	p.state = StatePaused
}

// Speed returns the current playback multiplier.
func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// CurrentState returns the state machine position.
func (p *Player) CurrentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Snapshot returns the renderable state. Progress is computed from the
// virtual clock on demand; no edits are applied here.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Snapshot{
		Text:       p.doc.Text(),
		Cursor:     p.doc.Cursor(),
		Selection:  p.doc.Selection(),
		ProgressMs: int64(p.virtualLocked()),
		DurationMs: p.durationMs,
		Speed:      p.speed,
		State:      p.state,
		PauseBands: p.pauseBands,
		RunMarkers: p.runMarkers,
	}
}

// rebuildTo returns a fresh document with events[0:idx] applied, starting
// from the nearest retained snapshot. Observably identical to a rebuild from
// empty.
func (p *Player) rebuildTo(idx int) *Document {
	doc := NewDocument()
	from := 0
	if p.snapshotEvery > 0 {
		if snap := idx/p.snapshotEvery - 1; snap >= 0 && snap < len(p.snapshots) {
			doc = p.snapshots[snap].Clone()
			from = (snap + 1) * p.snapshotEvery
		}
	}
	for i := from; i < idx; i++ {
		doc.Apply(p.events[i])
	}
	return doc
}

func (p *Player) resetLocked() {
	p.doc = NewDocument()
	p.index = 0
	p.base = 0
}

// invalidateLocked cancels any armed timer and bumps the generation so an
// already fired callback racing for the lock becomes a no-op.
func (p *Player) invalidateLocked() {
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// virtualLocked computes the current virtual time in ms.
func (p *Player) virtualLocked() float64 {
	v := p.base
	if p.state == StatePlaying {
		v += float64(p.clock.Now().Sub(p.wallStart).Milliseconds()) * p.speed
	}
	if max := float64(p.durationMs); v > max {
		v = max
	}
	return v
}

// advanceLocked applies every event due at the current virtual time, then
// either arms a timer for the next event or ends playback. This is the only
// path that mutates the document during playback.
func (p *Player) advanceLocked() {
	now := p.virtualLocked()
	for p.index < len(p.events) && float64(p.stamps[p.index]) <= now {
		p.doc.Apply(p.events[p.index])
		p.index++
	}

	if p.index >= len(p.events) {
		p.state = StateEnded
		p.base = float64(p.durationMs)
		p.invalidateLocked()
		return
	}

	delay := time.Duration((float64(p.stamps[p.index]) - now) / p.speed * float64(time.Millisecond))
	if delay <= 0 {
		delay = time.Nanosecond
	}
	gen := p.generation
	p.timer = p.clock.AfterFunc(delay, func() { p.onTimer(gen) })
}

func (p *Player) onTimer(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation || p.state != StatePlaying {
		return
	}
	p.advanceLocked()
}
