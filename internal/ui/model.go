package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/common-nighthawk/go-figure"

	"karolbroda.com/overlyric/internal/artwork"
)

const (
	frameInterval = 50 * time.Millisecond
	bannerText    = "overlyric"
	bannerFont    = "small"
	maxBoxWidth   = 72
)

type TickMsg time.Time

// LineMsg replaces the displayed line. Messages are immutable once sent.
type LineMsg struct {
	Primary   string
	Secondary string
	Pair      artwork.ColorPair
}

type ClearMsg struct{}

// ProgressMsg carries the estimated playback position and the last cue.
type ProgressMsg struct {
	Position time.Duration
	LastCue  time.Duration
}

type Model struct {
	primary       string
	secondary     string
	pair          artwork.ColorPair
	hasLine       bool
	showSecondary bool

	nudge        func(time.Duration)
	offsetNudged time.Duration

	position    time.Duration
	lastCue     time.Duration
	hasProgress bool

	banner    []string
	width     int
	height    int
	tickCount int
	animState AnimState
	quitting  bool
}

type ModelConfig struct {
	// Nudge is called with sync offset changes from the keyboard.
	Nudge         func(time.Duration)
	HideSecondary bool
}

func NewModel(cfg ModelConfig) Model {
	return Model{
		pair:          artwork.DefaultTheme(),
		showSecondary: !cfg.HideSecondary,
		nudge:         cfg.Nudge,
		banner:        figure.NewFigure(bannerText, bannerFont, true).Slicify(),
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Primary() string               { return m.primary }
func (m Model) Secondary() string             { return m.secondary }
func (m Model) Pair() artwork.ColorPair       { return m.pair }
func (m Model) HasLine() bool                 { return m.hasLine }
func (m Model) ShowSecondary() bool           { return m.showSecondary }
func (m Model) OffsetNudged() time.Duration   { return m.offsetNudged }
func (m Model) IsQuitting() bool              { return m.quitting }
func (m Model) Position() time.Duration       { return m.position }
func (m Model) AnimState() *AnimState         { return &m.animState }
