package colors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHalfwayTone(t *testing.T) {
	assert.Equal(t, "#7f7f7f", HalfwayTone("#000000", "#ffffff"))
	assert.Equal(t, "#7f7f7f", HalfwayTone("#ffffff", "#000000"))
	assert.Equal(t, "#806040", HalfwayTone("#ff0080", "#01c000"))
}

func TestHalfwayTone_InvalidInputIsWhite(t *testing.T) {
	assert.Equal(t, "#ffffff", HalfwayTone("nope", "#ffffff"))
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#1a2B3c")
	require.NoError(t, err)
	assert.Equal(t, RGB{R: 0x1a, G: 0x2b, B: 0x3c}, c)

	c, err = ParseHex("ffffff")
	require.NoError(t, err)
	assert.Equal(t, RGB{255, 255, 255}, c)

	_, err = ParseHex("#fff")
	assert.Error(t, err)
	_, err = ParseHex("#gggggg")
	assert.Error(t, err)
}

func TestRGB_Hex(t *testing.T) {
	assert.Equal(t, "#00ff0a", RGB{G: 255, B: 10}.Hex())
}

func TestSaturation(t *testing.T) {
	assert.InDelta(t, 1.0, RGB{R: 255}.Saturation(), 1e-9)
	assert.InDelta(t, 0.0, RGB{R: 128, G: 128, B: 128}.Saturation(), 1e-9)
	assert.InDelta(t, 0.5, RGB{R: 200, G: 100, B: 100}.Saturation(), 1e-9)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 0, Distance(RGB{1, 2, 3}, RGB{1, 2, 3}), 1e-9)
	assert.InDelta(t, 5, Distance(RGB{0, 0, 0}, RGB{3, 4, 0}), 1e-9)
}

func TestAdjustBrightness(t *testing.T) {
	assert.Equal(t, RGB{R: 255, G: 100, B: 0}, AdjustBrightness(RGB{R: 200, G: 50}, 2))
}

func TestReadableOn(t *testing.T) {
	assert.Equal(t, RGB{}, ReadableOn(RGB{255, 255, 255}))
	assert.Equal(t, RGB{255, 255, 255}, ReadableOn(RGB{10, 10, 40}))
}

func TestBlend(t *testing.T) {
	black := RGB{}
	white := RGB{255, 255, 255}

	assert.Equal(t, black, Blend(black, white, 0))
	assert.Equal(t, white, Blend(black, white, 1.5))
	assert.Equal(t, RGB{128, 128, 128}, Blend(black, white, 0.5))
}
