package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	fineNudge   = 100 * time.Millisecond
	coarseNudge = 500 * time.Millisecond
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case LineMsg:
		m.primary = msg.Primary
		m.secondary = msg.Secondary
		m.pair = msg.Pair
		m.hasLine = true
		m.animState.Reset()
		return m, nil

	case ClearMsg:
		m.primary = ""
		m.secondary = ""
		m.hasLine = false
		m.offsetNudged = 0
		m.hasProgress = false
		return m, nil

	case ProgressMsg:
		m.position = msg.Position
		m.lastCue = msg.LastCue
		m.hasProgress = true
		return m, nil

	case TickMsg:
		m.tickCount++
		m.animState.Update(6)
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "up", "k", "+", "=":
		return m.applyNudge(fineNudge), nil

	case "down", "j", "-":
		return m.applyNudge(-fineNudge), nil

	case "right", "l":
		return m.applyNudge(coarseNudge), nil

	case "left", "h":
		return m.applyNudge(-coarseNudge), nil

	case "tab", "s":
		m.showSecondary = !m.showSecondary
		return m, nil
	}

	return m, nil
}

func (m Model) applyNudge(delta time.Duration) Model {
	if m.nudge == nil {
		return m
	}
	m.nudge(delta)
	m.offsetNudged += delta
	return m
}
