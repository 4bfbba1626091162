package main

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"karolbroda.com/overlyric/internal/cache"
	"karolbroda.com/overlyric/internal/lyrics"
	"karolbroda.com/overlyric/internal/track"
)

var (
	// flags for cache commands
	cacheSortBy  string
	cacheConfirm bool
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the lyrics cache",
	Long:  `inspect and manage resolved lyrics and per-track sync offsets stored on disk.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		count, size, err := diskCache.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		fmt.Printf("location: %s\n", diskCache.Dir())
		fmt.Printf("entries:  %d\n", count)
		fmt.Printf("size:     %s\n", humanize.Bytes(uint64(size)))

		entries, err := diskCache.ListAll()
		if err != nil || len(entries) == 0 {
			return nil
		}
		sortCacheEntries(entries, "date")
		fmt.Printf("newest:   %s (%s)\n", entries[0].TrackName, humanize.Time(time.Unix(entries[0].CreatedAt, 0)))
		oldest := entries[len(entries)-1]
		fmt.Printf("oldest:   %s (%s)\n", oldest.TrackName, humanize.Time(time.Unix(oldest.CreatedAt, 0)))

		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "list cached songs",
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		entries, err := diskCache.ListAll()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("cache is empty")
			return nil
		}

		sortCacheEntries(entries, cacheSortBy)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ARTIST\tTITLE\tDURATION\tOFFSET\tCACHED")
		for _, e := range entries {
			offset := "-"
			if e.SyncOffset != 0 {
				offset = fmt.Sprintf("%+.2fs", e.SyncOffset.Seconds())
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(e.ArtistName, 24), truncate(e.TrackName, 32), track.FormatDuration(e.Duration),
				offset, humanize.Time(time.Unix(e.CreatedAt, 0)))
		}
		w.Flush()

		fmt.Printf("\n%d entries\n", len(entries))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show details of a cached song",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		info := track.Info{Artist: args[0], Title: args[1]}
		entry, err := diskCache.Get(info.CacheKey())
		if err != nil {
			return notCached(diskCache, info, err)
		}

		fmt.Printf("track:        %s\n", entry.TrackName)
		fmt.Printf("artist:       %s\n", entry.ArtistName)
		if entry.AlbumName != "" {
			fmt.Printf("album:        %s\n", entry.AlbumName)
		}
		fmt.Printf("lrclib id:    %s\n", entry.CatalogID)
		fmt.Printf("duration:     %s\n", track.FormatDuration(entry.Duration))
		fmt.Printf("sync offset:  %+.2fs\n", entry.SyncOffset.Seconds())
		fmt.Printf("instrumental: %v\n", entry.Instrumental)
		fmt.Printf("cached:       %s\n", time.Unix(entry.CreatedAt, 0).Format("2006-01-02 15:04:05"))
		fmt.Printf("expires:      %s\n", time.Unix(entry.ExpiresAt, 0).Format("2006-01-02 15:04:05"))

		lines, err := lyrics.Parse(entry.SyncedLyrics)
		switch {
		case err != nil:
			fmt.Printf("\nsynced lyrics are malformed: %v\n", err)
		case len(lines) == 0:
			fmt.Println("\nno synced lyrics")
		default:
			fmt.Printf("\nsynced lyrics: %d lines, last cue at %s\n", len(lines), lyrics.FormatOffset(lines[len(lines)-1].Offset))
		}

		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "clear all cached entries",
	Long:  `remove all cached lyrics and sync offsets. use --confirm to skip the prompt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		if !cacheConfirm {
			fmt.Printf("remove every entry under %s? (y/n): ", diskCache.Dir())
			var response string
			fmt.Scanln(&response)
			if r := strings.ToLower(response); r != "y" && r != "yes" {
				fmt.Println("cancelled")
				return nil
			}
		}

		if err := diskCache.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Println("cache cleared")
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "remove expired cache entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		pruned, err := diskCache.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}

		fmt.Printf("pruned %d expired entries\n", pruned)
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "remove a specific song from cache",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		diskCache, err := cacheFromFlags(cmd)
		if err != nil {
			return err
		}

		info := track.Info{Artist: args[0], Title: args[1]}
		if _, err := diskCache.Get(info.CacheKey()); err != nil {
			return notCached(diskCache, info, err)
		}

		if err := diskCache.Delete(info.CacheKey()); err != nil {
			return fmt.Errorf("failed to delete from cache: %w", err)
		}

		fmt.Printf("deleted '%s - %s' from cache\n", info.Artist, info.Title)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)

	cacheListCmd.Flags().StringVar(&cacheSortBy, "sort", "date", "sort by: date, artist, title")
	cacheClearCmd.Flags().BoolVar(&cacheConfirm, "confirm", false, "skip confirmation prompt")
}

// helper functions

func cacheFromFlags(cmd *cobra.Command) (*cache.DiskCache, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	diskCache, err := requireCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return diskCache, nil
}

func notCached(diskCache *cache.DiskCache, info track.Info, err error) error {
	if suggestions := findSimilarCachedSongs(diskCache, info.Artist, info.Title); len(suggestions) > 0 {
		fmt.Fprintln(os.Stderr, "closest cached songs:")
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  %s - %s\n", s.ArtistName, s.TrackName)
		}
		fmt.Fprintln(os.Stderr)
	}
	return fmt.Errorf("%q by %q is not cached: %w", info.Title, info.Artist, err)
}

func sortCacheEntries(entries []*cache.Entry, sortBy string) {
	var key func(e *cache.Entry) string
	switch sortBy {
	case "artist":
		key = func(e *cache.Entry) string { return strings.ToLower(e.ArtistName) }
	case "title":
		key = func(e *cache.Entry) string { return strings.ToLower(e.TrackName) }
	default:
		// newest first
		slices.SortStableFunc(entries, func(a, b *cache.Entry) int {
			return cmp.Compare(b.CreatedAt, a.CreatedAt)
		})
		return
	}
	slices.SortStableFunc(entries, func(a, b *cache.Entry) int {
		return strings.Compare(key(a), key(b))
	})
}

// findSimilarCachedSongs matches on substrings of artist and title, at most
// five results. An exact artist match is tried first.
func findSimilarCachedSongs(diskCache *cache.DiskCache, artist string, title string) []*cache.Entry {
	all, err := diskCache.ListAll()
	if err != nil || len(all) == 0 {
		return nil
	}

	wantArtist, wantTitle := strings.ToLower(artist), strings.ToLower(title)
	overlaps := func(a, b string) bool {
		return strings.Contains(a, b) || strings.Contains(b, a)
	}

	var matches []*cache.Entry
	for _, e := range all {
		if strings.ToLower(e.ArtistName) == wantArtist && overlaps(strings.ToLower(e.TrackName), wantTitle) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		for _, e := range all {
			if overlaps(strings.ToLower(e.ArtistName), wantArtist) && overlaps(strings.ToLower(e.TrackName), wantTitle) {
				matches = append(matches, e)
			}
		}
	}

	if len(matches) > 5 {
		matches = matches[:5]
	}
	return matches
}
