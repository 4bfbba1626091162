package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/overlyric/internal/artwork"
	"karolbroda.com/overlyric/internal/colors"
)

// Sender is the part of *tea.Program the overlay display needs.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramDisplay forwards display calls to a running bubbletea program.
type ProgramDisplay struct {
	program Sender
}

func NewProgramDisplay(program Sender) *ProgramDisplay {
	return &ProgramDisplay{program: program}
}

func (d *ProgramDisplay) Update(primary, secondary string, pair artwork.ColorPair) {
	d.program.Send(LineMsg{Primary: primary, Secondary: secondary, Pair: pair})
}

func (d *ProgramDisplay) Clear() {
	d.program.Send(ClearMsg{})
}

func (d *ProgramDisplay) Progress(position, lastCue time.Duration) {
	d.program.Send(ProgressMsg{Position: position, LastCue: lastCue})
}

// PlainDisplay writes one line per update, for pipes and dumb terminals.
type PlainDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	cleared bool
}

func NewPlainDisplay(out io.Writer, color bool) *PlainDisplay {
	return &PlainDisplay{out: out, color: color, cleared: true}
}

func (d *PlainDisplay) Update(primary, secondary string, pair artwork.ColorPair) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cleared = false
	if !d.color {
		fmt.Fprintln(d.out, primary)
		return
	}

	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(pair.Accent.Hex())).
		Background(lipgloss.Color(pair.Base.Hex()))
	line := style.Render(" " + primary + " ")
	if secondary != "" {
		tone := colors.HalfwayTone(pair.Base.Hex(), pair.Accent.Hex())
		line += " " + lipgloss.NewStyle().Foreground(lipgloss.Color(tone)).Render(secondary)
	}
	fmt.Fprintln(d.out, line)
}

// Clear prints a blank separator once per run of clears.
func (d *PlainDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cleared {
		return
	}
	d.cleared = true
	fmt.Fprintln(d.out)
}
