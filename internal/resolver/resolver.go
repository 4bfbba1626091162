package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"karolbroda.com/overlyric/internal/cache"
	"karolbroda.com/overlyric/internal/metrics"
	"karolbroda.com/overlyric/internal/track"
)

const (
	DefaultThreshold = 10 * time.Second

	SourceCache   = "cache"
	SourceCatalog = "catalog"
)

// Candidate is one catalog search hit.
type Candidate struct {
	ID           string
	TrackName    string
	ArtistName   string
	AlbumName    string
	Duration     time.Duration
	Instrumental bool
	HasSynced    bool
	// SyncedLyrics is set when the search payload already carried the text.
	SyncedLyrics string
}

type Query struct {
	Title  string
	Artist string
	Album  string
}

func (q Query) String() string {
	return fmt.Sprintf("title=%q artist=%q album=%q", q.Title, q.Artist, q.Album)
}

type Catalog interface {
	Search(ctx context.Context, q Query) ([]Candidate, error)
	SyncedLyrics(ctx context.Context, id string) (string, error)
}

type Cache interface {
	Get(key string) (*cache.Entry, error)
	Set(key string, entry *cache.Entry) error
}

type NotFoundError struct {
	Title  string
	Artist string
	Reason string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("no lyrics found for %q by %q", e.Title, e.Artist)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

type NoMatchWithinThresholdError struct {
	Title      string
	Candidates int
	Closest    time.Duration
	Threshold  time.Duration
}

func (e *NoMatchWithinThresholdError) Error() string {
	return fmt.Sprintf("%d candidates for %q, closest is %s off (threshold %s)",
		e.Candidates, e.Title, e.Closest, e.Threshold)
}

// Result is a resolved transcript and where it came from.
type Result struct {
	Lyrics     string
	Candidate  Candidate
	Source     string
	SyncOffset time.Duration
}

type Options struct {
	Threshold time.Duration
	Cache     Cache
	Logger    *slog.Logger
}

type Resolver struct {
	catalog   Catalog
	cache     Cache
	threshold time.Duration
	logger    *slog.Logger
}

func New(catalog Catalog, opts Options) *Resolver {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		catalog:   catalog,
		cache:     opts.Cache,
		threshold: threshold,
		logger:    logger,
	}
}

func (r *Resolver) Threshold() time.Duration {
	return r.threshold
}

// Resolve returns the synced transcript that best matches info, checking the
// cache before the catalog.
func (r *Resolver) Resolve(ctx context.Context, info track.Info) (*Result, error) {
	if info.Title == "" {
		metrics.Resolutions.WithLabelValues("not_found", SourceCatalog).Inc()
		return nil, &NotFoundError{Artist: info.Artist, Reason: "track has no title"}
	}

	key := info.CacheKey()
	if result, ok := r.fromCache(key); ok {
		metrics.Resolutions.WithLabelValues("ok", SourceCache).Inc()
		return result, nil
	}

	candidates, err := r.Search(ctx, info)
	if err != nil {
		metrics.Resolutions.WithLabelValues(outcome(err), SourceCatalog).Inc()
		return nil, err
	}

	chosen, err := Select(candidates, info.Duration, r.threshold)
	if err != nil {
		var noMatch *NoMatchWithinThresholdError
		if errors.As(err, &noMatch) {
			noMatch.Title = info.Title
		}
		metrics.Resolutions.WithLabelValues(outcome(err), SourceCatalog).Inc()
		return nil, err
	}

	text := chosen.SyncedLyrics
	if text == "" {
		text, err = r.catalog.SyncedLyrics(ctx, chosen.ID)
		if err != nil {
			metrics.Resolutions.WithLabelValues("error", SourceCatalog).Inc()
			return nil, fmt.Errorf("failed to fetch synced lyrics %s: %w", chosen.ID, err)
		}
	}
	if text == "" {
		metrics.Resolutions.WithLabelValues("not_found", SourceCatalog).Inc()
		return nil, &NotFoundError{
			Title:  info.Title,
			Artist: info.Artist,
			Reason: fmt.Sprintf("entry %s has no synced lyrics", chosen.ID),
		}
	}

	r.logger.Info("Resolved lyrics",
		"title", info.Title,
		"artist", info.Artist,
		"id", chosen.ID,
		"candidate", chosen.TrackName,
		"duration", chosen.Duration)

	r.store(key, chosen, text)
	metrics.Resolutions.WithLabelValues("ok", SourceCatalog).Inc()

	return &Result{Lyrics: text, Candidate: chosen, Source: SourceCatalog}, nil
}

// SaveOffset persists a manual sync offset next to the cached transcript.
func (r *Resolver) SaveOffset(info track.Info, offset time.Duration) error {
	if r.cache == nil {
		return nil
	}
	key := info.CacheKey()
	entry, err := r.cache.Get(key)
	if err != nil {
		return err
	}
	entry.SyncOffset = offset
	return r.cache.Set(key, entry)
}

func (r *Resolver) fromCache(key string) (*Result, bool) {
	if r.cache == nil {
		return nil, false
	}

	entry, err := r.cache.Get(key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Debug("Cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}
	if entry.SyncedLyrics == "" {
		return nil, false
	}

	return &Result{
		Lyrics: entry.SyncedLyrics,
		Candidate: Candidate{
			ID:           entry.CatalogID,
			TrackName:    entry.TrackName,
			ArtistName:   entry.ArtistName,
			AlbumName:    entry.AlbumName,
			Duration:     entry.Duration,
			Instrumental: entry.Instrumental,
			HasSynced:    true,
			SyncedLyrics: entry.SyncedLyrics,
		},
		Source:     SourceCache,
		SyncOffset: entry.SyncOffset,
	}, true
}

func (r *Resolver) store(key string, c Candidate, text string) {
	if r.cache == nil {
		return
	}
	err := r.cache.Set(key, &cache.Entry{
		CatalogID:    c.ID,
		TrackName:    c.TrackName,
		ArtistName:   c.ArtistName,
		AlbumName:    c.AlbumName,
		Duration:     c.Duration,
		Instrumental: c.Instrumental,
		SyncedLyrics: text,
	})
	if err != nil {
		r.logger.Warn("Failed to cache lyrics", "key", key, "error", err)
	}
}

func outcome(err error) string {
	var notFound *NotFoundError
	var noMatch *NoMatchWithinThresholdError
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &noMatch):
		return "no_match"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
