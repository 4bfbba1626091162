package main

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"karolbroda.com/overlyric/internal/artwork"
	"karolbroda.com/overlyric/internal/colors"
)

var (
	// flags for theme
	themeClusters  int
	themeClusterer string
	themeNoArt     bool
)

var themeCmd = &cobra.Command{
	Use:   "theme <image>",
	Short: "show the color theme extracted from an image",
	Long: `cluster an image (path, file:// or http(s) url) the way the overlay clusters album
artwork and print the clusters and the chosen base/accent pair.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("clusters") {
			cfg.Theme.Clusters = themeClusters
		}
		if cmd.Flags().Changed("clusterer") {
			cfg.Theme.Clusterer = themeClusterer
		}

		extractor, err := newExtractor(cfg)
		if err != nil {
			return err
		}

		img, err := loadImage(cmd, args[0])
		if err != nil {
			return err
		}

		if !themeNoArt {
			for _, line := range artwork.RenderHalfBlockArt(img, 32, 16) {
				fmt.Println("  " + line)
			}
			fmt.Println()
		}

		analysis, err := extractor.Analyze(img)
		var plain *artwork.ExtractionError
		if errors.As(err, &plain) {
			fmt.Printf("%v\n", err)
			printPair("default", artwork.DefaultTheme())
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to extract theme: %w", err)
		}

		total := 0
		for _, c := range analysis.Clusters {
			total += c.Weight
		}
		vivid := artwork.MostSaturated(analysis.Clusters)

		fmt.Printf("clusters (%s, k=%d):\n", cfg.Theme.Clusterer, len(analysis.Clusters))
		for i, c := range analysis.Clusters {
			mark := " "
			if i == vivid {
				mark = "*"
			}
			share := 0.0
			if total > 0 {
				share = float64(c.Weight) / float64(total) * 100
			}
			fmt.Printf(" %s %s %s  %5.1f%%  sat %.2f\n", mark, artwork.Swatch(c.Color, 6), c.Color.Hex(), share, c.Color.Saturation())
		}
		fmt.Println()

		printPair("theme", analysis.Pair)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)

	themeCmd.Flags().IntVarP(&themeClusters, "clusters", "k", artwork.DefaultClusters, "number of color clusters")
	themeCmd.Flags().StringVar(&themeClusterer, "clusterer", "", "kmeans or prominent")
	themeCmd.Flags().BoolVar(&themeNoArt, "no-art", false, "do not draw the image preview")
}

func loadImage(cmd *cobra.Command, src string) (image.Image, error) {
	if strings.Contains(src, "://") {
		return artwork.Fetch(cmd.Context(), src)
	}
	raw, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return artwork.Decode(raw)
}

func printPair(label string, pair artwork.ColorPair) {
	tone := colors.HexToRGB(colors.HalfwayTone(pair.Base.Hex(), pair.Accent.Hex()))

	fmt.Printf("%s: base %s  accent %s  tone %s\n", label, pair.Base.Hex(), pair.Accent.Hex(), tone.Hex())
	fmt.Printf("  %s %s %s\n", artwork.Swatch(pair.Base, 6), artwork.Swatch(pair.Accent, 6), artwork.Swatch(tone, 6))

	sample := lipgloss.NewStyle().
		Background(lipgloss.Color(pair.Base.Hex())).
		Padding(0, 2)
	fmt.Println()
	fmt.Println("  " + sample.Foreground(lipgloss.Color(pair.Accent.Hex())).Render("the current line looks like this"))
	fmt.Println("  " + sample.Foreground(lipgloss.Color(tone.Hex())).Render("and the next one like this"))
	fmt.Println("  " + sample.Foreground(lipgloss.Color(colors.ReadableOn(pair.Base).Hex())).Render("high contrast text on the base"))
}
