package terminal

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type Capabilities struct {
	Interactive bool
	TrueColor   bool
	TermProgram string
}

// DetectCapabilities decides between the full-screen overlay and the plain
// line writer.
func DetectCapabilities() *Capabilities {
	caps := &Capabilities{
		TermProgram: os.Getenv("TERM_PROGRAM"),
	}

	fd := os.Stdout.Fd()
	caps.Interactive = (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("TERM") != "dumb"

	switch strings.ToLower(os.Getenv("COLORTERM")) {
	case "truecolor", "24bit":
		caps.TrueColor = true
	}

	return caps
}

// Reset restores the cursor, attributes and main screen after the overlay.
func Reset() {
	os.Stdout.WriteString("\033[?25h")
	os.Stdout.WriteString("\033[0m")
	os.Stdout.WriteString("\033[?1049l")
	os.Stdout.Sync()
}
