package syncer

import (
	"errors"
	"time"

	"karolbroda.com/overlyric/internal/lyrics"
	"karolbroda.com/overlyric/internal/track"
)

const (
	DefaultPauseCorrection = 500 * time.Millisecond
	DefaultSeekThreshold   = 3 * time.Second
)

// ErrTrackChanged is returned by Step when the snapshot belongs to another
// track. The caller restarts the per-track pipeline.
var ErrTrackChanged = errors.New("track changed")

type Phase int

const (
	PhaseAwaitingFirstSnapshot Phase = iota
	PhaseTracking
)

func (p Phase) String() string {
	if p == PhaseTracking {
		return "tracking"
	}
	return "awaiting_first_snapshot"
}

// State is owned by the caller and threaded through Step.
type State struct {
	Phase      Phase
	Index      int
	RefClock   time.Time
	RefOffset  time.Duration
	LastStatus track.Status
}

func NewState() State {
	return State{Phase: PhaseAwaitingFirstSnapshot, Index: -1}
}

// Update describes what to show after a step. Emit is false when the
// displayed line should stay as it is.
type Update struct {
	Emit      bool
	Index     int
	Primary   string
	Secondary string
	Position  time.Duration
}

type Options struct {
	PauseCorrection time.Duration
	// SeekThreshold re-anchors the estimate when the player disagrees by more
	// than this while playing. Zero disables it.
	SeekThreshold time.Duration
	Offset        time.Duration
	TwoLine       bool
}

func DefaultOptions() Options {
	return Options{
		PauseCorrection: DefaultPauseCorrection,
		SeekThreshold:   DefaultSeekThreshold,
		TwoLine:         true,
	}
}

type Engine struct {
	current track.Info
	lines   []lyrics.Line
	opts    Options
}

func NewEngine(current track.Info, lines []lyrics.Line, opts Options) *Engine {
	if opts.PauseCorrection < 0 {
		opts.PauseCorrection = 0
	}
	if opts.SeekThreshold < 0 {
		opts.SeekThreshold = 0
	}
	return &Engine{current: current, lines: lines, opts: opts}
}

func (e *Engine) Track() track.Info {
	return e.current
}

func (e *Engine) Lines() []lyrics.Line {
	return e.lines
}

func (e *Engine) Offset() time.Duration {
	return e.opts.Offset
}

// WithOffset returns a copy of the engine using a different sync offset.
func (e *Engine) WithOffset(offset time.Duration) *Engine {
	copied := *e
	copied.opts.Offset = offset
	return &copied
}

// Estimate is the playback position implied by s at the given local time,
// without the sync offset.
func (e *Engine) Estimate(s State, at time.Time) time.Duration {
	if s.Phase != PhaseTracking {
		return 0
	}
	if s.LastStatus != track.StatusPlaying {
		return s.RefOffset
	}
	return s.RefOffset + at.Sub(s.RefClock)
}

// Step folds one snapshot into s.
func (e *Engine) Step(s State, snap track.Info) (State, Update, error) {
	if !e.current.IsSameTrack(&snap) {
		return s, Update{Index: s.Index}, ErrTrackChanged
	}

	if s.Phase == PhaseAwaitingFirstSnapshot {
		s.Phase = PhaseTracking
		s.RefOffset = snap.Position
		s.RefClock = snap.CapturedAt
		s.LastStatus = snap.Status
		if snap.Status != track.StatusPlaying {
			return s, Update{Index: s.Index, Position: snap.Position}, nil
		}
		return e.advance(s, snap.Position)
	}

	switch snap.Status {
	case track.StatusPaused:
		s.RefOffset = max(snap.Position-e.opts.PauseCorrection, 0)
		s.RefClock = snap.CapturedAt
		s.LastStatus = track.StatusPaused
		return s, Update{Index: s.Index, Position: s.RefOffset}, nil

	case track.StatusStopped:
		s.RefOffset = snap.Position
		s.RefClock = snap.CapturedAt
		s.LastStatus = track.StatusStopped
		return s, Update{Index: s.Index, Position: s.RefOffset}, nil
	}

	// paused snapshots keep the reference fresh, so a resume continues from it
	s.LastStatus = track.StatusPlaying

	estimate := s.RefOffset + snap.CapturedAt.Sub(s.RefClock)
	if e.opts.SeekThreshold > 0 && absDuration(snap.Position-estimate) > e.opts.SeekThreshold {
		s.RefOffset = snap.Position
		s.RefClock = snap.CapturedAt
		estimate = snap.Position
	}

	return e.advance(s, estimate)
}

func (e *Engine) advance(s State, estimate time.Duration) (State, Update, error) {
	position := estimate + e.opts.Offset
	idx := lyrics.LineAt(e.lines, position)

	if idx <= s.Index {
		return s, Update{Index: s.Index, Position: position}, nil
	}

	s.Index = idx
	update := Update{
		Emit:     true,
		Index:    idx,
		Primary:  e.lines[idx].Text,
		Position: position,
	}
	if e.opts.TwoLine && idx+1 < len(e.lines) {
		update.Secondary = e.lines[idx+1].Text
	}
	return s, update, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
