package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/overlyric/internal/artwork"
	"karolbroda.com/overlyric/internal/colors"
	"karolbroda.com/overlyric/internal/player"
	"karolbroda.com/overlyric/internal/resolver"
	"karolbroda.com/overlyric/internal/syncer"
	"karolbroda.com/overlyric/internal/track"
)

type fakeProvider struct {
	mu      sync.Mutex
	start   time.Time
	current track.Info
	err     error
	calls   int
	pauses  int
	plays   int
}

func newFakeProvider(info track.Info) *fakeProvider {
	return &fakeProvider{start: time.Now(), current: info}
}

func (f *fakeProvider) Snapshot(ctx context.Context) (track.Info, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return track.Info{}, f.err
	}
	info := f.current
	info.CapturedAt = time.Now()
	info.Position = info.CapturedAt.Sub(f.start)
	return info, nil
}

func (f *fakeProvider) Pause(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	return nil
}

func (f *fakeProvider) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return nil
}

func (f *fakeProvider) switchTo(info track.Info) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = info
	f.start = time.Now()
}

func (f *fakeProvider) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type shown struct {
	primary   string
	secondary string
	pair      artwork.ColorPair
}

type fakeDisplay struct {
	mu      sync.Mutex
	updates []shown
	clears  int
}

func (d *fakeDisplay) Update(primary, secondary string, pair artwork.ColorPair) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, shown{primary, secondary, pair})
}

func (d *fakeDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clears++
}

func (d *fakeDisplay) snapshot() ([]shown, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]shown(nil), d.updates...), d.clears
}

func (d *fakeDisplay) primaries() []string {
	updates, _ := d.snapshot()
	out := make([]string, 0, len(updates))
	for _, u := range updates {
		out = append(out, u.primary)
	}
	return out
}

type progressDisplay struct {
	fakeDisplay
	progress [][2]time.Duration
}

func (d *progressDisplay) Progress(position, lastCue time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.progress = append(d.progress, [2]time.Duration{position, lastCue})
}

func (d *progressDisplay) progressCalls() [][2]time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][2]time.Duration(nil), d.progress...)
}

type fakeResolver struct {
	mu       sync.Mutex
	lyrics   map[string]string
	block    map[string]bool
	err      error
	canceled []string
	offsets  []time.Duration
}

func (f *fakeResolver) Resolve(ctx context.Context, info track.Info) (*resolver.Result, error) {
	f.mu.Lock()
	blocked := f.block[info.Title]
	text, ok := f.lyrics[info.Title]
	err := f.err
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		f.mu.Lock()
		f.canceled = append(f.canceled, info.Title)
		f.mu.Unlock()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &resolver.NotFoundError{Title: info.Title}
	}
	return &resolver.Result{Lyrics: text, Source: resolver.SourceCatalog}, nil
}

func (f *fakeResolver) SaveOffset(info track.Info, offset time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	return nil
}

type fakeExtractor struct {
	pair artwork.ColorPair
	err  error
}

func (f fakeExtractor) Extract(image.Image) (artwork.ColorPair, error) {
	return f.pair, f.err
}

func loadStub(context.Context, []byte, string) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

var testPair = artwork.ColorPair{Base: colors.RGB{R: 200}, Accent: colors.RGB{R: 255, G: 255, B: 255}}

func testOptions() Options {
	return Options{
		PollInterval:     2 * time.Millisecond,
		NoSessionBackoff: 40 * time.Millisecond,
		SettleDelay:      time.Millisecond,
		Sync:             syncer.DefaultOptions(),
		LoadArtwork:      loadStub,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func startRunner(t *testing.T, r *Runner) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("runner did not stop")
		}
	})
	return cancel
}

func TestRunner_DisplaysLinesInOrder(t *testing.T) {
	song := track.Info{Title: "Song", Artist: "Band", ArtworkURL: "file:///cover.png", Status: track.StatusPlaying}
	provider := newFakeProvider(song)
	display := &fakeDisplay{}
	res := &fakeResolver{lyrics: map[string]string{
		"Song": "[00:00.00] one\n[00:00.20] two\n[00:00.40] three",
	}}

	r := New(provider, display, res, fakeExtractor{pair: testPair}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool {
		return len(display.primaries()) == 3
	}, 2*time.Second, 5*time.Millisecond)

	updates, _ := display.snapshot()
	assert.Equal(t, []string{"one", "two", "three"}, display.primaries())
	assert.Equal(t, "two", updates[0].secondary)
	assert.Equal(t, testPair, updates[0].pair)
}

func TestRunner_ReportsProgressOncePerSecond(t *testing.T) {
	provider := newFakeProvider(track.Info{Title: "Song", Artist: "Band", Status: track.StatusPlaying})
	display := &progressDisplay{}
	res := &fakeResolver{lyrics: map[string]string{
		"Song": "[00:00.00] one\n[02:05.50] last\n[00:01.00] out of order",
	}}

	r := New(provider, display, res, fakeExtractor{pair: testPair}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool { return len(display.progressCalls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// polling every 2ms within the first second repeats the same position
	calls := display.progressCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, time.Duration(0), calls[0][0])
	assert.Equal(t, 2*time.Minute+5500*time.Millisecond, calls[0][1])
}

func TestRunner_TrackChangeDuringResolution(t *testing.T) {
	first := track.Info{Title: "Slow", Artist: "Band", Status: track.StatusPlaying}
	second := track.Info{Title: "Fast", Artist: "Band", Status: track.StatusPlaying}

	provider := newFakeProvider(first)
	display := &fakeDisplay{}
	res := &fakeResolver{
		block:  map[string]bool{"Slow": true},
		lyrics: map[string]string{"Slow": "[00:00.00] stale", "Fast": "[00:00.00] fresh"},
	}

	r := New(provider, display, res, fakeExtractor{pair: testPair}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool { return provider.callCount() > 3 }, time.Second, time.Millisecond)
	provider.switchTo(second)

	require.Eventually(t, func() bool {
		return len(display.primaries()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"fresh"}, display.primaries())
	updates, _ := display.snapshot()
	assert.Equal(t, artwork.DefaultTheme(), updates[0].pair)

	require.Eventually(t, func() bool {
		res.mu.Lock()
		defer res.mu.Unlock()
		return len(res.canceled) == 1 && res.canceled[0] == "Slow"
	}, time.Second, time.Millisecond)
}

func TestRunner_TrackChangeWhileTracking(t *testing.T) {
	first := track.Info{Title: "One", Artist: "Band", Status: track.StatusPlaying}
	second := track.Info{Title: "Two", Artist: "Band", Status: track.StatusPlaying}

	provider := newFakeProvider(first)
	display := &fakeDisplay{}
	res := &fakeResolver{lyrics: map[string]string{
		"One": "[00:00.00] first song",
		"Two": "[00:00.00] second song",
	}}

	r := New(provider, display, res, fakeExtractor{pair: testPair}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool { return len(display.primaries()) == 1 }, 2*time.Second, 5*time.Millisecond)
	_, clearsBefore := display.snapshot()

	provider.switchTo(second)
	require.Eventually(t, func() bool { return len(display.primaries()) == 2 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"first song", "second song"}, display.primaries())
	_, clearsAfter := display.snapshot()
	assert.Greater(t, clearsAfter, clearsBefore)
}

func TestRunner_NotFoundClearsDisplay(t *testing.T) {
	provider := newFakeProvider(track.Info{Title: "Unknown", Artist: "Band", Status: track.StatusPlaying})
	display := &fakeDisplay{}

	r := New(provider, display, &fakeResolver{}, fakeExtractor{pair: testPair}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool {
		_, clears := display.snapshot()
		return clears >= 2
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, display.primaries())
}

func TestRunner_MalformedLyricsClearsDisplay(t *testing.T) {
	broken := track.Info{Title: "Broken", Artist: "Band", Status: track.StatusPlaying}
	fine := track.Info{Title: "Fine", Artist: "Band", Status: track.StatusPlaying}

	provider := newFakeProvider(broken)
	display := &fakeDisplay{}
	res := &fakeResolver{lyrics: map[string]string{
		"Broken": "[00:00.00] never shown\n[00:75.00] bad",
		"Fine":   "[00:00.00] shown",
	}}

	r := New(provider, display, res, fakeExtractor{pair: testPair}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool {
		_, clears := display.snapshot()
		return clears >= 2
	}, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, display.primaries())

	provider.switchTo(fine)
	require.Eventually(t, func() bool { return len(display.primaries()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"shown"}, display.primaries())
}

func TestRunner_ExtractionFailureUsesDefaultTheme(t *testing.T) {
	provider := newFakeProvider(track.Info{Title: "Song", Artist: "Band", ArtworkURL: "file:///x.png", Status: track.StatusPlaying})
	display := &fakeDisplay{}
	res := &fakeResolver{lyrics: map[string]string{"Song": "[00:00.00] hi"}}
	extractor := fakeExtractor{err: &artwork.ExtractionError{Distinct: 1, Clusters: 5}}

	r := New(provider, display, res, extractor, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool { return len(display.primaries()) == 1 }, 2*time.Second, 5*time.Millisecond)
	updates, _ := display.snapshot()
	assert.Equal(t, artwork.DefaultTheme(), updates[0].pair)
}

func TestRunner_NoActiveSessionBacksOff(t *testing.T) {
	provider := newFakeProvider(track.Info{})
	provider.fail(player.ErrNoActiveSession)

	r := New(provider, &fakeDisplay{}, &fakeResolver{}, fakeExtractor{}, testOptions())
	startRunner(t, r)

	time.Sleep(100 * time.Millisecond)
	// 2ms polling would give ~50 calls without the backoff
	assert.LessOrEqual(t, provider.callCount(), 5)
}

func TestRunner_RecoversAfterSessionReturns(t *testing.T) {
	provider := newFakeProvider(track.Info{Title: "Song", Artist: "Band", Status: track.StatusPlaying})
	provider.fail(player.ErrNoActiveSession)
	display := &fakeDisplay{}
	res := &fakeResolver{lyrics: map[string]string{"Song": "[00:00.00] back"}}

	r := New(provider, display, res, fakeExtractor{pair: testPair}, testOptions())
	startRunner(t, r)

	time.Sleep(10 * time.Millisecond)
	provider.fail(nil)

	require.Eventually(t, func() bool { return len(display.primaries()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunner_TransientErrorsKeepPolling(t *testing.T) {
	provider := newFakeProvider(track.Info{})
	provider.fail(errors.New("dbus hiccup"))

	r := New(provider, &fakeDisplay{}, &fakeResolver{}, fakeExtractor{}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool { return provider.callCount() > 10 }, time.Second, time.Millisecond)
}

func TestRunner_ResyncOnStart(t *testing.T) {
	provider := newFakeProvider(track.Info{Title: "Song", Artist: "Band", Status: track.StatusPlaying})
	opts := testOptions()
	opts.ResyncOnStart = true

	r := New(provider, &fakeDisplay{}, &fakeResolver{}, fakeExtractor{}, opts)
	startRunner(t, r)

	require.Eventually(t, func() bool {
		provider.mu.Lock()
		defer provider.mu.Unlock()
		return provider.pauses == 1 && provider.plays == 1
	}, time.Second, time.Millisecond)
}

func TestRunner_NudgePersistsOffset(t *testing.T) {
	provider := newFakeProvider(track.Info{Title: "Song", Artist: "Band", Status: track.StatusPlaying})
	display := &fakeDisplay{}
	res := &fakeResolver{lyrics: map[string]string{"Song": "[00:00.00] hi"}}

	r := New(provider, display, res, fakeExtractor{}, testOptions())
	startRunner(t, r)

	require.Eventually(t, func() bool { return len(display.primaries()) == 1 }, 2*time.Second, 5*time.Millisecond)

	r.Nudge(500 * time.Millisecond)
	r.Nudge(-100 * time.Millisecond)

	require.Eventually(t, func() bool {
		res.mu.Lock()
		defer res.mu.Unlock()
		return len(res.offsets) == 2
	}, time.Second, 5*time.Millisecond)

	res.mu.Lock()
	defer res.mu.Unlock()
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 400 * time.Millisecond}, res.offsets)
}

func TestRunner_StopsOnCancel(t *testing.T) {
	provider := newFakeProvider(track.Info{Title: "Song", Artist: "Band", Status: track.StatusPlaying})
	display := &fakeDisplay{}
	r := New(provider, display, &fakeResolver{}, fakeExtractor{}, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
