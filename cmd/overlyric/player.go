package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/overlyric/internal/player"
	"karolbroda.com/overlyric/internal/track"
)

var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "mpris player utilities",
	Long:  `discover mpris-compatible music players and inspect what they are playing.`,
}

var playerListCmd = &cobra.Command{
	Use:   "list",
	Short: "list available mpris players",
	Long:  `list all mpris-compatible music players currently running on the system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		players, err := player.ListPlayers(ctx, bus)
		if err != nil {
			return err
		}

		if len(players) == 0 {
			fmt.Println("no mpris players found")
			fmt.Println("\ncheck if your music player is running and supports mpris")
			return nil
		}

		fmt.Printf("found %d mpris player(s):\n\n", len(players))
		for _, p := range players {
			if p.Identity != "" {
				fmt.Printf("  %s (%s)\n", p.Service, p.Identity)
			} else {
				fmt.Printf("  %s\n", p.Service)
			}
		}

		fmt.Println("\nuse --mpris-service flag to specify which player to use")
		return nil
	},
}

var playerCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "show currently playing track",
	Long:  `display the snapshot the overlay would see for the current track.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			return fmt.Errorf("failed to connect to session bus: %w", err)
		}
		defer bus.Close()

		playerService, err := player.NewService(bus, cfg.MprisService)
		if err != nil {
			return fmt.Errorf("failed to connect to player: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()

		info, err := playerService.Snapshot(ctx)
		if errors.Is(err, player.ErrNoActiveSession) {
			fmt.Println("no track currently playing")
			return nil
		}
		if err != nil {
			return err
		}
		if !info.IsValid() {
			fmt.Printf("playing %q with no artist tag, lyrics cannot be looked up\n", info.Title)
		}

		fmt.Printf("title:    %s\n", info.Title)
		fmt.Printf("artist:   %s\n", info.Artist)
		if info.Album != "" {
			fmt.Printf("album:    %s\n", info.Album)
		}
		if info.Duration > 0 {
			fmt.Printf("duration: %s\n", track.FormatDuration(info.Duration))
		}
		if info.ArtworkURL != "" {
			fmt.Printf("artwork:  %s\n", info.ArtworkURL)
		}
		fmt.Printf("state:    %s\n", info.Status)
		if info.Status != track.StatusStopped {
			fmt.Printf("position: %s\n", track.FormatDuration(info.Position))
		}
		fmt.Printf("cache key: %s\n", info.CacheKey())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)

	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerCurrentCmd)
}
