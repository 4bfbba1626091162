package track

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusPlaying, ParseStatus("Playing"))
	assert.Equal(t, StatusPaused, ParseStatus("Paused"))
	assert.Equal(t, StatusStopped, ParseStatus("Stopped"))
	assert.Equal(t, StatusStopped, ParseStatus(""))
}

func TestInfo_IsSameTrack(t *testing.T) {
	a := &Info{Title: "Song", Artist: "A"}
	b := &Info{Title: "Song", Artist: "A", Position: 10 * time.Second}
	c := &Info{Title: "Other", Artist: "A"}

	assert.True(t, a.IsSameTrack(b))
	assert.False(t, a.IsSameTrack(c))
	assert.False(t, a.IsSameTrack(nil))

	var nilInfo *Info
	assert.True(t, nilInfo.IsSameTrack(nil))
}

func TestInfo_IsSameTrack_TrackID(t *testing.T) {
	a := &Info{Title: "Intro", TrackID: "/track/1"}
	b := &Info{Title: "Intro", TrackID: "/track/2"}
	assert.False(t, a.IsSameTrack(b))
}

func TestInfo_CacheKey(t *testing.T) {
	info := &Info{Title: "Águas de Março", Artist: "Elis Regina"}
	assert.Equal(t, "Águas de Março-Elis Regina", info.CacheKey())
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "3:05", FormatDuration(185*time.Second))
	assert.Equal(t, "0:00", FormatDuration(-time.Second))
}
