package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGB is an 8-bit per channel color.
type RGB struct {
	R, G, B uint8
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c RGB) String() string {
	return c.Hex()
}

// Saturation is the HSV saturation in [0, 1].
func (c RGB) Saturation() float64 {
	_, s, _ := c.colorful().Hsv()
	return s
}

// Value is the HSV value (brightness) in [0, 1].
func (c RGB) Value() float64 {
	_, _, v := c.colorful().Hsv()
	return v
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.R) / 255.0,
		G: float64(c.G) / 255.0,
		B: float64(c.B) / 255.0,
	}
}

// Distance is the euclidean distance in RGB space.
func Distance(a RGB, b RGB) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Halfway is the component-wise average, truncated.
func Halfway(a RGB, b RGB) RGB {
	return RGB{
		R: uint8((uint16(a.R) + uint16(b.R)) / 2),
		G: uint8((uint16(a.G) + uint16(b.G)) / 2),
		B: uint8((uint16(a.B) + uint16(b.B)) / 2),
	}
}

// HalfwayTone is Halfway on hex strings. Unreadable input counts as white,
// so it never fails.
func HalfwayTone(hexA string, hexB string) string {
	return Halfway(HexToRGB(hexA), HexToRGB(hexB)).Hex()
}

// ParseHex reads #rrggbb (the leading # is optional).
func ParseHex(hex string) (RGB, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(trimmed) != 6 {
		return RGB{}, fmt.Errorf("invalid hex color %q", hex)
	}

	value, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}

	return RGB{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value)}, nil
}

func HexToRGB(hex string) RGB {
	c, err := ParseHex(hex)
	if err != nil {
		return RGB{R: 255, G: 255, B: 255}
	}
	return c
}

// AdjustBrightness scales every channel by factor, clamped to 0-255.
func AdjustBrightness(c RGB, factor float64) RGB {
	return RGB{
		R: clampChannel(float64(c.R) * factor),
		G: clampChannel(float64(c.G) * factor),
		B: clampChannel(float64(c.B) * factor),
	}
}

// ReadableOn picks black or white text for a background using relative luminance.
func ReadableOn(bg RGB) RGB {
	l := bg.colorful().Clamped()
	lum := 0.2126*l.R + 0.7152*l.G + 0.0722*l.B
	if lum > 0.55 {
		return RGB{}
	}
	return RGB{R: 255, G: 255, B: 255}
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// Blend mixes a toward b in RGB space, t in [0, 1].
func Blend(a RGB, b RGB, t float64) RGB {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	mixed := a.colorful().BlendRgb(b.colorful(), t)
	return RGB{
		R: clampChannel(math.Round(mixed.R * 255)),
		G: clampChannel(math.Round(mixed.G * 255)),
		B: clampChannel(math.Round(mixed.B * 255)),
	}
}
