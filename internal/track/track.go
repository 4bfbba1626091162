package track

import (
	"fmt"
	"time"
)

// Status is the transport state reported by the player.
type Status int

const (
	StatusStopped Status = iota
	StatusPlaying
	StatusPaused
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ParseStatus maps an MPRIS PlaybackStatus value onto a Status.
func ParseStatus(raw string) Status {
	switch raw {
	case "Playing":
		return StatusPlaying
	case "Paused":
		return StatusPaused
	default:
		return StatusStopped
	}
}

// Info is a single snapshot of the player. It is never mutated after capture.
type Info struct {
	Title      string
	Artist     string
	Album      string
	Duration   time.Duration
	ArtworkURL string
	Artwork    []byte
	TrackID    string
	Position   time.Duration
	Status     Status
	CapturedAt time.Time
}

func (t *Info) IsValid() bool {
	if t == nil {
		return false
	}
	return t.Title != "" && t.Artist != ""
}

// IsSameTrack compares by title, which is what the sync engine keys on.
// The MPRIS track id is used first when both sides carry one.
func (t *Info) IsSameTrack(other *Info) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.TrackID != "" && other.TrackID != "" && t.TrackID != other.TrackID {
		return false
	}
	return t.Title == other.Title
}

// CacheKey is the per-track persistence key, "{title}-{artist}".
func (t *Info) CacheKey() string {
	return fmt.Sprintf("%s-%s", t.Title, t.Artist)
}

func (t *Info) HasArtwork() bool {
	return len(t.Artwork) > 0 || t.ArtworkURL != ""
}

func FormatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	seconds := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
