package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/overlyric/internal/colors"
	"karolbroda.com/overlyric/internal/track"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	if !m.hasLine {
		return m.renderIdle(width, height)
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, m.renderBox(width), m.renderFooter()))
}

// renderBox draws the current line as accent text on the base color, with
// the next line in the halfway tone below it.
func (m Model) renderBox(width int) string {
	base := m.pair.Base
	accent := m.pair.Accent
	tone := colors.HalfwayTone(base.Hex(), accent.Hex())

	boxWidth := min(width-4, maxBoxWidth)
	if boxWidth < 10 {
		boxWidth = 10
	}

	primaryColor := colors.Blend(colors.HexToRGB(tone), accent, m.animState.Progress())
	primaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(primaryColor.Hex())).
		Background(lipgloss.Color(base.Hex())).
		Bold(m.animState.Glow > 0.3)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(tone)).
		BorderBackground(lipgloss.Color(base.Hex())).
		Background(lipgloss.Color(base.Hex())).
		Padding(1, 3).
		Width(boxWidth).
		Align(lipgloss.Center)

	text := m.primary
	if strings.TrimSpace(text) == "" {
		text = "♪"
	}
	content := primaryStyle.Render(text)

	if m.showSecondary && m.secondary != "" {
		secondaryStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color(tone)).
			Background(lipgloss.Color(base.Hex())).
			Italic(true)
		content = lipgloss.JoinVertical(lipgloss.Center, content, "", secondaryStyle.Render(m.secondary))
	}

	return box.Render(content)
}

func (m Model) renderFooter() string {
	var parts []string
	if m.hasProgress {
		parts = append(parts, fmt.Sprintf("%s / %s", track.FormatDuration(m.position), track.FormatDuration(m.lastCue)))
	}
	if m.offsetNudged != 0 {
		parts = append(parts, fmt.Sprintf("offset %+.1fs", m.offsetNudged.Seconds()))
	}
	if len(parts) == 0 {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(colors.HalfwayTone(m.pair.Base.Hex(), m.pair.Accent.Hex())))
	return style.Render(strings.Join(parts, "  ·  "))
}

func (m Model) renderIdle(width int, height int) string {
	dim := colors.AdjustBrightness(m.pair.Accent, 0.5)
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(dim.Hex()))

	var content string
	if bannerWidth(m.banner) <= width-2 {
		content = style.Render(strings.Join(m.banner, "\n"))
	} else {
		content = style.Italic(true).Render(bannerText)
	}

	pulseChars := []string{"·", "•", "●", "•"}
	pulse := style.Render(pulseChars[(m.tickCount/4)%len(pulseChars)])

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "", pulse))
}

func bannerWidth(lines []string) int {
	widest := 0
	for _, l := range lines {
		widest = max(widest, lipgloss.Width(l))
	}
	return widest
}
