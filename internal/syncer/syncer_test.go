package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/overlyric/internal/lyrics"
	"karolbroda.com/overlyric/internal/track"
)

var (
	epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	song  = track.Info{Title: "Song", Artist: "Band"}
	cues  = []lyrics.Line{
		{Offset: 0, Text: "zero"},
		{Offset: 10 * time.Second, Text: "ten"},
		{Offset: 20 * time.Second, Text: "twenty"},
	}
)

func snapshot(status track.Status, position time.Duration, at time.Duration) track.Info {
	info := song
	info.Status = status
	info.Position = position
	info.CapturedAt = epoch.Add(at)
	return info
}

func playing(position, at time.Duration) track.Info {
	return snapshot(track.StatusPlaying, position, at)
}

func TestStep_FirstSnapshotAnchors(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())

	state, update, err := engine.Step(NewState(), playing(3*time.Second, 0))
	require.NoError(t, err)

	assert.Equal(t, PhaseTracking, state.Phase)
	assert.Equal(t, 3*time.Second, state.RefOffset)
	assert.Equal(t, epoch, state.RefClock)
	assert.True(t, update.Emit)
	assert.Equal(t, "zero", update.Primary)
	assert.Equal(t, "ten", update.Secondary)
}

func TestStep_AdvancesExactlyAtCue(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state := NewState()

	emitted := map[int]int{}
	for i := 0; i <= 250; i++ {
		elapsed := time.Duration(i) * 100 * time.Millisecond
		var update Update
		var err error
		state, update, err = engine.Step(state, playing(elapsed, elapsed))
		require.NoError(t, err)
		if update.Emit {
			emitted[i] = update.Index
		}
	}

	assert.Equal(t, map[int]int{0: 0, 100: 1, 200: 2}, emitted)
}

func TestStep_PauseResumeNoSkipNoRepeat(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state := NewState()

	var update Update
	var err error
	for i := 0; i <= 98; i++ {
		elapsed := time.Duration(i) * 100 * time.Millisecond
		state, _, err = engine.Step(state, playing(elapsed, elapsed))
		require.NoError(t, err)
	}
	require.Equal(t, 0, state.Index)

	pausedAt := 9800 * time.Millisecond
	lastPaused := pausedAt
	for at := pausedAt; at <= pausedAt+5*time.Second; at += 100 * time.Millisecond {
		state, update, err = engine.Step(state, snapshot(track.StatusPaused, pausedAt, at))
		require.NoError(t, err)
		assert.False(t, update.Emit)
		lastPaused = at
	}
	assert.Equal(t, 9300*time.Millisecond, state.RefOffset)
	assert.Equal(t, epoch.Add(lastPaused), state.RefClock)

	firstEmit := -1
	for k := 1; k <= 20; k++ {
		at := lastPaused + time.Duration(k)*100*time.Millisecond
		reported := pausedAt + time.Duration(k-1)*100*time.Millisecond
		state, update, err = engine.Step(state, playing(reported, at))
		require.NoError(t, err)
		if update.Emit {
			assert.Equal(t, 1, update.Index)
			if firstEmit < 0 {
				firstEmit = k
			}
		}
	}

	assert.Equal(t, 7, firstEmit)
	assert.Equal(t, 1, state.Index)
}

func TestStep_TrackChanged(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state, _, err := engine.Step(NewState(), playing(0, 0))
	require.NoError(t, err)

	other := playing(time.Second, time.Second)
	other.Title = "Another Song"

	next, _, err := engine.Step(state, other)
	assert.ErrorIs(t, err, ErrTrackChanged)
	assert.Equal(t, state, next)
}

func TestStep_NeverMovesBackwards(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state, _, err := engine.Step(NewState(), playing(15*time.Second, 0))
	require.NoError(t, err)
	require.Equal(t, 1, state.Index)

	// backward seek: re-anchored, index kept
	state, update, err := engine.Step(state, playing(2*time.Second, 100*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, update.Emit)
	assert.Equal(t, 1, state.Index)
	assert.Equal(t, 2*time.Second, state.RefOffset)
}

func TestStep_ForwardSeekJumps(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state, _, err := engine.Step(NewState(), playing(time.Second, 0))
	require.NoError(t, err)

	state, update, err := engine.Step(state, playing(25*time.Second, 200*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, update.Emit)
	assert.Equal(t, 2, update.Index)
	assert.Equal(t, "twenty", update.Primary)
	assert.Empty(t, update.Secondary)
	assert.Equal(t, 2, state.Index)
}

func TestStep_SeekDetectionDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.SeekThreshold = 0
	engine := NewEngine(song, cues, opts)

	state, _, err := engine.Step(NewState(), playing(time.Second, 0))
	require.NoError(t, err)

	state, update, err := engine.Step(state, playing(25*time.Second, 200*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, update.Emit)
	assert.Equal(t, time.Second, state.RefOffset)
}

func TestStep_SmallDriftIgnored(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state, _, err := engine.Step(NewState(), playing(5*time.Second, 0))
	require.NoError(t, err)

	state, _, err = engine.Step(state, playing(8*time.Second, time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, state.RefOffset)
	assert.Equal(t, 6*time.Second, engine.Estimate(state, epoch.Add(time.Second)))
}

func TestStep_FirstSnapshotPaused(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())

	state, update, err := engine.Step(NewState(), snapshot(track.StatusPaused, 12*time.Second, 0))
	require.NoError(t, err)
	assert.False(t, update.Emit)
	assert.Equal(t, -1, state.Index)
	assert.Equal(t, 12*time.Second, state.RefOffset)
	assert.Equal(t, 12*time.Second, engine.Estimate(state, epoch.Add(time.Hour)))
}

func TestStep_StoppedHasNoCorrection(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state, _, err := engine.Step(NewState(), playing(0, 0))
	require.NoError(t, err)

	state, update, err := engine.Step(state, snapshot(track.StatusStopped, 4*time.Second, time.Second))
	require.NoError(t, err)
	assert.False(t, update.Emit)
	assert.Equal(t, 4*time.Second, state.RefOffset)
	assert.Equal(t, track.StatusStopped, state.LastStatus)
}

func TestStep_PauseCorrectionClampsAtZero(t *testing.T) {
	engine := NewEngine(song, cues, DefaultOptions())
	state, _, err := engine.Step(NewState(), playing(0, 0))
	require.NoError(t, err)

	state, _, err = engine.Step(state, snapshot(track.StatusPaused, 200*time.Millisecond, 200*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), state.RefOffset)
}

func TestStep_SyncOffset(t *testing.T) {
	opts := DefaultOptions()
	opts.Offset = time.Second
	engine := NewEngine(song, cues, opts)

	state, update, err := engine.Step(NewState(), playing(9*time.Second, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, state.Index)
	assert.Equal(t, 10*time.Second, update.Position)

	shifted := engine.WithOffset(-time.Second)
	assert.Equal(t, -time.Second, shifted.Offset())
	assert.Equal(t, time.Second, engine.Offset())
}

func TestStep_SingleLineMode(t *testing.T) {
	opts := DefaultOptions()
	opts.TwoLine = false
	engine := NewEngine(song, cues, opts)

	_, update, err := engine.Step(NewState(), playing(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "zero", update.Primary)
	assert.Empty(t, update.Secondary)
}

func TestStep_NoLines(t *testing.T) {
	engine := NewEngine(song, nil, DefaultOptions())

	state, update, err := engine.Step(NewState(), playing(time.Minute, 0))
	require.NoError(t, err)
	assert.False(t, update.Emit)
	assert.Equal(t, -1, state.Index)
}

func TestStep_BeforeFirstCue(t *testing.T) {
	lines := []lyrics.Line{{Offset: 5 * time.Second, Text: "late"}}
	engine := NewEngine(song, lines, DefaultOptions())

	state, update, err := engine.Step(NewState(), playing(time.Second, 0))
	require.NoError(t, err)
	assert.False(t, update.Emit)

	_, update, err = engine.Step(state, playing(5*time.Second, 4*time.Second))
	require.NoError(t, err)
	assert.True(t, update.Emit)
	assert.Equal(t, "late", update.Primary)
}
