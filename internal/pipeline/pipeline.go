package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"karolbroda.com/overlyric/internal/artwork"
	"karolbroda.com/overlyric/internal/lyrics"
	"karolbroda.com/overlyric/internal/metrics"
	"karolbroda.com/overlyric/internal/player"
	"karolbroda.com/overlyric/internal/resolver"
	"karolbroda.com/overlyric/internal/syncer"
	"karolbroda.com/overlyric/internal/track"
)

const (
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultNoSessionBackoff = 2 * time.Second
	DefaultSettleDelay      = 100 * time.Millisecond
)

type SnapshotProvider interface {
	Snapshot(ctx context.Context) (track.Info, error)
	Pause(ctx context.Context) error
	Play(ctx context.Context) error
}

type Display interface {
	Update(primary, secondary string, pair artwork.ColorPair)
	Clear()
}

type LyricsResolver interface {
	Resolve(ctx context.Context, info track.Info) (*resolver.Result, error)
}

// OffsetSaver is optionally implemented by the LyricsResolver.
type OffsetSaver interface {
	SaveOffset(info track.Info, offset time.Duration) error
}

// ProgressDisplay is optionally implemented by the Display. It receives the
// estimated position, whole seconds only, and the offset of the last cue.
type ProgressDisplay interface {
	Progress(position, lastCue time.Duration)
}

type ThemeExtractor interface {
	Extract(img image.Image) (artwork.ColorPair, error)
}

type ArtworkLoader func(ctx context.Context, raw []byte, url string) (image.Image, error)

type Options struct {
	PollInterval     time.Duration
	NoSessionBackoff time.Duration
	ResyncOnStart    bool
	SettleDelay      time.Duration
	Sync             syncer.Options
	LoadArtwork      ArtworkLoader
	Logger           *slog.Logger
}

type Runner struct {
	provider  SnapshotProvider
	display   Display
	resolver  LyricsResolver
	extractor ThemeExtractor
	opts      Options
	logger    *slog.Logger
	nudges    chan time.Duration
}

func New(provider SnapshotProvider, display Display, res LyricsResolver, extractor ThemeExtractor, opts Options) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.NoSessionBackoff <= 0 {
		opts.NoSessionBackoff = DefaultNoSessionBackoff
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.LoadArtwork == nil {
		opts.LoadArtwork = artwork.Load
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		provider:  provider,
		display:   display,
		resolver:  res,
		extractor: extractor,
		opts:      opts,
		logger:    logger,
		nudges:    make(chan time.Duration, 8),
	}
}

// Nudge shifts the sync offset of the current track. It never blocks.
func (r *Runner) Nudge(delta time.Duration) {
	select {
	case r.nudges <- delta:
	default:
	}
}

type prepared struct {
	result *resolver.Result
	err    error
	pair   artwork.ColorPair
}

// session is the per-track state. It is only touched on the Run goroutine.
type session struct {
	info   track.Info
	cancel context.CancelFunc
	ready  <-chan prepared
	engine *syncer.Engine
	state  syncer.State
	pair   artwork.ColorPair
	shown  time.Duration // last position sent to a ProgressDisplay
}

// Run polls the provider until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	var sess *session
	defer func() {
		if sess != nil {
			sess.cancel()
		}
	}()

	for {
		var ready <-chan prepared
		if sess != nil {
			ready = sess.ready
		}

		select {
		case <-ctx.Done():
			r.display.Clear()
			return nil

		case delta := <-r.nudges:
			r.nudge(sess, delta)
			continue

		case p := <-ready:
			sess.ready = nil
			r.finish(sess, p)
			continue

		case <-ticker.C:
		}

		snap, err := r.provider.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, player.ErrNoActiveSession) {
				if sess != nil {
					r.logger.Info("Player went away", "title", sess.info.Title)
					sess.cancel()
					sess = nil
					r.display.Clear()
				}
				r.sleep(ctx, r.opts.NoSessionBackoff)
				continue
			}
			r.logger.Warn("Failed to read player state", "error", err)
			continue
		}

		if sess == nil {
			sess = r.start(ctx, snap)
			continue
		}

		if sess.engine == nil {
			if !sess.info.IsSameTrack(&snap) {
				sess = r.restart(ctx, sess, snap)
			}
			continue
		}

		state, update, err := sess.engine.Step(sess.state, snap)
		if errors.Is(err, syncer.ErrTrackChanged) {
			sess = r.restart(ctx, sess, snap)
			continue
		}
		sess.state = state

		if update.Emit {
			r.display.Update(update.Primary, update.Secondary, sess.pair)
			metrics.LineUpdates.Inc()
		}
		r.progress(sess, snap.CapturedAt)
	}
}

func (r *Runner) progress(sess *session, at time.Time) {
	pd, ok := r.display.(ProgressDisplay)
	if !ok {
		return
	}

	position := (sess.engine.Estimate(sess.state, at) + sess.engine.Offset()).Truncate(time.Second)
	if position < 0 {
		position = 0
	}
	if position == sess.shown {
		return
	}
	sess.shown = position

	var lastCue time.Duration
	for _, line := range sess.engine.Lines() {
		lastCue = max(lastCue, line.Offset)
	}
	pd.Progress(position, lastCue)
}

func (r *Runner) restart(ctx context.Context, old *session, snap track.Info) *session {
	old.cancel()
	metrics.TrackChanges.Inc()
	r.logger.Info("Track changed", "from", old.info.Title, "to", snap.Title)
	return r.start(ctx, snap)
}

func (r *Runner) start(ctx context.Context, info track.Info) *session {
	r.display.Clear()

	trackCtx, cancel := context.WithCancel(ctx)
	r.logger.Info("Now playing", "title", info.Title, "artist", info.Artist, "album", info.Album)

	return &session{
		info:   info,
		cancel: cancel,
		ready:  r.prepare(trackCtx, info),
		pair:   artwork.DefaultTheme(),
	}
}

// prepare resolves lyrics and extracts the theme concurrently. The result is
// delivered once both are done.
func (r *Runner) prepare(ctx context.Context, info track.Info) <-chan prepared {
	out := make(chan prepared, 1)

	go func() {
		if r.opts.ResyncOnStart && info.Status == track.StatusPlaying {
			r.resync(ctx)
		}

		var p prepared
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.result, p.err = r.resolver.Resolve(ctx, info)
		}()
		go func() {
			defer wg.Done()
			p.pair = r.theme(ctx, info)
		}()
		wg.Wait()

		out <- p
	}()

	return out
}

func (r *Runner) finish(sess *session, p prepared) {
	sess.pair = p.pair

	if p.err != nil {
		r.logResolveError(sess.info, p.err)
		r.display.Clear()
		return
	}

	lines, err := lyrics.Parse(p.result.Lyrics)
	if err != nil {
		r.logger.Error("Failed to parse lyrics", "title", sess.info.Title, "error", err)
		r.display.Clear()
		return
	}

	opts := r.opts.Sync
	if p.result.SyncOffset != 0 {
		opts.Offset = p.result.SyncOffset
	}

	sess.engine = syncer.NewEngine(sess.info, lines, opts)
	sess.state = syncer.NewState()
	sess.shown = -1

	r.logger.Info("Lyrics ready",
		"title", sess.info.Title,
		"lines", len(sess.engine.Lines()),
		"source", p.result.Source,
		"theme", p.pair.String())
}

func (r *Runner) nudge(sess *session, delta time.Duration) {
	if sess == nil || sess.engine == nil {
		return
	}

	sess.engine = sess.engine.WithOffset(sess.engine.Offset() + delta)
	r.logger.Info("Sync offset changed", "title", sess.info.Title, "offset", sess.engine.Offset())

	saver, ok := r.resolver.(OffsetSaver)
	if !ok {
		return
	}
	if err := saver.SaveOffset(sess.info, sess.engine.Offset()); err != nil {
		r.logger.Debug("Could not persist sync offset", "error", err)
	}
}

func (r *Runner) theme(ctx context.Context, info track.Info) artwork.ColorPair {
	if !info.HasArtwork() {
		return artwork.DefaultTheme()
	}

	img, err := r.opts.LoadArtwork(ctx, info.Artwork, info.ArtworkURL)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("Failed to load artwork", "url", info.ArtworkURL, "error", err)
			metrics.ExtractionFailures.Inc()
		}
		return artwork.DefaultTheme()
	}

	pair, err := r.extractor.Extract(img)
	if err != nil {
		r.logger.Warn("Falling back to default theme", "title", info.Title, "error", err)
		metrics.ExtractionFailures.Inc()
		return artwork.DefaultTheme()
	}
	return pair
}

// resync pauses and resumes the player so it reports a fresh position.
func (r *Runner) resync(ctx context.Context) {
	if err := r.provider.Pause(ctx); err != nil {
		r.logger.Debug("Resync pause failed", "error", err)
		return
	}
	r.sleep(ctx, r.opts.SettleDelay)
	if err := r.provider.Play(ctx); err != nil {
		r.logger.Warn("Resync play failed", "error", err)
	}
}

func (r *Runner) logResolveError(info track.Info, err error) {
	var notFound *resolver.NotFoundError
	var noMatch *resolver.NoMatchWithinThresholdError
	switch {
	case errors.Is(err, context.Canceled):
		r.logger.Debug("Lyrics resolution canceled", "title", info.Title)
	case errors.As(err, &notFound):
		r.logger.Info("No lyrics found", "title", info.Title, "artist", info.Artist)
	case errors.As(err, &noMatch):
		r.logger.Info("No lyrics match the track length", "title", info.Title, "error", err)
	default:
		r.logger.Error("Failed to resolve lyrics", "title", info.Title, "error", err)
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
