package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/overlyric/internal/cache"
	"karolbroda.com/overlyric/internal/logging"
	"karolbroda.com/overlyric/internal/lyrics"
	"karolbroda.com/overlyric/internal/resolver"
	"karolbroda.com/overlyric/internal/track"
)

var (
	// flags shared by the lyrics subcommands
	lyricsAlbum    string
	lyricsDuration time.Duration
	previewPlain   bool
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "lyrics search and management",
	Long:  `search lrclib for candidates, pre-fetch to cache, or preview lyrics in the terminal.`,
}

var lyricsSearchCmd = &cobra.Command{
	Use:   "search <artist> <title>",
	Short: "list lrclib candidates for a track",
	Long: `run the same relaxed searches the overlay runs and show every candidate,
marking the one that would be picked for the given --duration.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg.Cache.Enabled = false

		res, err := newResolver(cfg, logging.New(os.Stderr, cfg.Log))
		if err != nil {
			return err
		}

		info := trackFromArgs(args)
		fmt.Printf("searching for: %s - %s\n\n", info.Artist, info.Title)

		candidates, err := res.Search(cmd.Context(), info)
		if err != nil {
			return err
		}

		chosen, selectErr := resolver.Select(candidates, info.Duration, res.Threshold())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tTRACK\tARTIST\tDURATION\tSYNCED")
		for _, c := range candidates {
			mark := ""
			if selectErr == nil && c.ID == chosen.ID {
				mark = "*"
			}
			synced := "no"
			if c.Instrumental {
				synced = "instrumental"
			} else if c.HasSynced {
				synced = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				mark, c.ID, truncate(c.TrackName, 32), truncate(c.ArtistName, 24), track.FormatDuration(c.Duration), synced)
		}
		w.Flush()

		fmt.Println()
		var noMatch *resolver.NoMatchWithinThresholdError
		switch {
		case selectErr == nil:
			fmt.Printf("selected: %s (%s - %s)\n", chosen.ID, chosen.ArtistName, chosen.TrackName)
		case errors.As(selectErr, &noMatch):
			fmt.Printf("no candidate within %s of %s (closest is %s off)\n",
				res.Threshold(), track.FormatDuration(info.Duration), noMatch.Closest)
		default:
			fmt.Printf("nothing selected: %v\n", selectErr)
		}

		return nil
	},
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "pre-fetch and cache lyrics",
	Long:  `resolve lyrics from lrclib and save them to the local cache for instant loading.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.Cache.Enabled {
			return errors.New("the cache is disabled, nothing to fetch into")
		}

		res, err := newResolver(cfg, logging.New(os.Stderr, cfg.Log))
		if err != nil {
			return err
		}

		info := trackFromArgs(args)
		fmt.Printf("fetching: %s - %s\n", info.Artist, info.Title)

		result, err := res.Resolve(cmd.Context(), info)
		if err != nil {
			return fmt.Errorf("failed to fetch lyrics: %w", err)
		}

		if result.Source == resolver.SourceCache {
			fmt.Printf("'%s - %s' is already cached\n", info.Artist, info.Title)
			if result.SyncOffset != 0 {
				fmt.Printf("sync offset: %+.2fs\n", result.SyncOffset.Seconds())
			}
			return nil
		}

		fmt.Printf("cached successfully: %s - %s (lrclib id %s)\n",
			result.Candidate.ArtistName, result.Candidate.TrackName, result.Candidate.ID)
		return nil
	},
}

var lyricsPreviewCmd = &cobra.Command{
	Use:   "preview <artist> <title>",
	Short: "preview lyrics in terminal",
	Long:  `display the parsed lyrics with their timestamps, or as plain text with --text.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		res, err := newResolver(cfg, logging.New(os.Stderr, cfg.Log))
		if err != nil {
			return err
		}

		info := trackFromArgs(args)
		result, err := res.Resolve(cmd.Context(), info)
		if err != nil {
			var notFound *resolver.NotFoundError
			if errors.As(err, &notFound) {
				printCachedSuggestions(cfg.Cache.Dir, info)
			}
			return fmt.Errorf("lyrics not found: %w", err)
		}

		if result.Source == resolver.SourceCache {
			fmt.Println("(from cache)")
		}

		lines, err := lyrics.Parse(result.Lyrics)
		if err != nil {
			return fmt.Errorf("lyrics are not usable: %w", err)
		}

		fmt.Printf("\n%s - %s\n", result.Candidate.ArtistName, result.Candidate.TrackName)
		if result.Candidate.AlbumName != "" {
			fmt.Printf("%s\n", result.Candidate.AlbumName)
		}
		fmt.Println(strings.Repeat("─", 60))

		if len(lines) == 0 {
			fmt.Println("\nno valid synced lyrics found")
			return nil
		}

		if previewPlain {
			fmt.Printf("\n%s\n", lyrics.PlainText(lines))
			return nil
		}

		fmt.Printf("\nsynced lyrics (%d lines):\n\n", len(lines))
		for _, line := range lines {
			fmt.Printf("%s %s\n", lyrics.FormatOffset(line.Offset+result.SyncOffset), line.Text)
		}

		if result.SyncOffset != 0 {
			fmt.Printf("\nsync offset: %+.2fs (applied above)\n", result.SyncOffset.Seconds())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)

	lyricsCmd.AddCommand(lyricsSearchCmd)
	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsPreviewCmd)

	lyricsCmd.PersistentFlags().StringVar(&lyricsAlbum, "album", "", "album name to narrow the search")
	lyricsCmd.PersistentFlags().DurationVar(&lyricsDuration, "duration", 0, "track duration (e.g., 3m42s) used to pick a candidate")

	lyricsPreviewCmd.Flags().BoolVar(&previewPlain, "text", false, "print plain text without timestamps")
}

// helper functions

func trackFromArgs(args []string) track.Info {
	return track.Info{
		Artist:   args[0],
		Title:    args[1],
		Album:    lyricsAlbum,
		Duration: lyricsDuration,
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printCachedSuggestions(dir string, info track.Info) {
	if dir == "" {
		dir = cache.DefaultDir()
	}
	diskCache, err := cache.New(dir, 0)
	if err != nil {
		return
	}

	suggestions := findSimilarCachedSongs(diskCache, info.Artist, info.Title)
	if len(suggestions) == 0 {
		return
	}

	fmt.Fprintf(os.Stderr, "similar songs in cache:\n")
	for _, s := range suggestions {
		fmt.Fprintf(os.Stderr, "  %s - %s\n", s.ArtistName, s.TrackName)
	}
	fmt.Fprintln(os.Stderr)
}
