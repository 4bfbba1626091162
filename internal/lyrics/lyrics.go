package lyrics

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Line is one cue: an offset from the start of the track and the text shown from then on.
type Line struct {
	Offset time.Duration
	Text   string
}

// FormatError reports a cue whose time tag could not be read. One bad cue
// invalidates the whole transcript.
type FormatError struct {
	LineNumber int
	Line       string
	Reason     string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed time tag on line %d (%q): %s", e.LineNumber, e.Line, e.Reason)
}

var cuePattern = regexp.MustCompile(`^\[(\d{2}):(\d{2})\.(\d{2})\] (.*)$`)

// Parse reads `[MM:SS.CC] text` cues in input order. Lines that are not cues
// are dropped, including bare tags and other time precisions. A cue whose
// fields do not form a valid time fails the whole parse. Empty input gives an
// empty, non-nil slice.
func Parse(raw string) ([]Line, error) {
	result := make([]Line, 0)
	if raw == "" {
		return result, nil
	}

	for i, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")

		match := cuePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		offset, err := cueOffset(match[1], match[2], match[3])
		if err != nil {
			return nil, &FormatError{LineNumber: i + 1, Line: line, Reason: err.Error()}
		}

		result = append(result, Line{Offset: offset, Text: match[4]})
	}

	return result, nil
}

func cueOffset(minutesRaw, secondsRaw, centisRaw string) (time.Duration, error) {
	minutes, err := strconv.Atoi(minutesRaw)
	if err != nil {
		return 0, fmt.Errorf("minutes: %w", err)
	}
	seconds, err := strconv.Atoi(secondsRaw)
	if err != nil {
		return 0, fmt.Errorf("seconds: %w", err)
	}
	if seconds >= 60 {
		return 0, fmt.Errorf("seconds out of range: %d", seconds)
	}
	centis, err := strconv.Atoi(centisRaw)
	if err != nil {
		return 0, fmt.Errorf("centiseconds: %w", err)
	}

	return time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(centis)*10*time.Millisecond, nil
}

// Format writes cues back in the bracketed format. Offsets are truncated to
// centiseconds.
func Format(lines []Line) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatOffset(line.Offset))
		b.WriteByte(' ')
		b.WriteString(line.Text)
	}
	return b.String()
}

func FormatOffset(offset time.Duration) string {
	if offset < 0 {
		offset = 0
	}
	centis := int64(offset / (10 * time.Millisecond))
	minutes := centis / 6000
	seconds := (centis / 100) % 60
	return fmt.Sprintf("[%02d:%02d.%02d]", minutes, seconds, centis%100)
}

// LineAt returns the greatest index whose offset is at or before pos, or -1.
// The whole slice is scanned, so out-of-order cues are still handled.
func LineAt(lines []Line, pos time.Duration) int {
	index := -1
	for i, line := range lines {
		if line.Offset <= pos {
			index = i
		}
	}
	return index
}

// PlainText drops the timing and blank cues.
func PlainText(lines []Line) string {
	texts := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		texts = append(texts, line.Text)
	}
	return strings.Join(texts, "\n")
}
