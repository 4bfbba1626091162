package artwork

import (
	"image"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"

	"karolbroda.com/overlyric/internal/colors"
)

// RenderHalfBlockArt draws the image with "▀" cells, two pixel rows per
// terminal row.
func RenderHalfBlockArt(img image.Image, targetWidth int, targetHeight int) []string {
	if img == nil || targetWidth < 4 || targetHeight < 2 {
		return nil
	}

	resized := resize.Resize(uint(targetWidth), uint(targetHeight*2), img, resize.Lanczos3)
	bounds := resized.Bounds()

	lines := make([]string, targetHeight)
	for y := 0; y < targetHeight; y++ {
		var line strings.Builder
		topY := bounds.Min.Y + y*2
		bottomY := topY + 1
		if bottomY >= bounds.Max.Y {
			bottomY = topY
		}

		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			top, topOpaque := pixelAt(resized, x, topY)
			bottom, bottomOpaque := pixelAt(resized, x, bottomY)

			if !topOpaque && !bottomOpaque {
				line.WriteString(" ")
				continue
			}

			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(top.Hex())).
				Background(lipgloss.Color(bottom.Hex()))
			line.WriteString(style.Render("▀"))
		}
		lines[y] = line.String()
	}

	return lines
}

// Swatch renders a solid block of the given color.
func Swatch(c colors.RGB, width int) string {
	return lipgloss.NewStyle().Background(lipgloss.Color(c.Hex())).Render(strings.Repeat(" ", width))
}

func pixelAt(img image.Image, x int, y int) (colors.RGB, bool) {
	r, g, b, a := img.At(x, y).RGBA()
	return colors.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}, a >= 0x8000
}
