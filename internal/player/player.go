package player

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/overlyric/internal/track"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisPrefix      = "org.mpris.MediaPlayer2."
)

// ErrNoActiveSession means no player is running or nothing is loaded.
var ErrNoActiveSession = errors.New("no active media session")

// names the bus uses when the requested service has gone away
var noSessionErrors = map[string]bool{
	"org.freedesktop.DBus.Error.ServiceUnknown":  true,
	"org.freedesktop.DBus.Error.NameHasNoOwner":  true,
	"org.freedesktop.DBus.Error.UnknownObject":   true,
	"org.freedesktop.DBus.Error.UnknownInterface": true,
}

type Player struct {
	Service  string
	Identity string
}

// Service reads snapshots from one MPRIS player. An empty service name
// follows whichever player is first on the bus.
type Service struct {
	bus     *dbus.Conn
	service string
	now     func() time.Time
}

func NewService(bus *dbus.Conn, mprisService string) (*Service, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if mprisService != "" && !strings.HasPrefix(mprisService, mprisPrefix) {
		mprisService = mprisPrefix + mprisService
	}

	return &Service{
		bus:     bus,
		service: mprisService,
		now:     time.Now,
	}, nil
}

func (s *Service) target(ctx context.Context) (string, error) {
	if s.service != "" {
		return s.service, nil
	}

	players, err := ListPlayers(ctx, s.bus)
	if err != nil {
		return "", err
	}
	if len(players) == 0 {
		return "", ErrNoActiveSession
	}
	return players[0].Service, nil
}

// Snapshot reads metadata, position and playback status in one call.
func (s *Service) Snapshot(ctx context.Context) (track.Info, error) {
	service, err := s.target(ctx)
	if err != nil {
		return track.Info{}, err
	}

	var props map[string]dbus.Variant
	err = s.bus.Object(service, mprisPath).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, mprisPlayerIface).
		Store(&props)
	capturedAt := s.now()
	if err != nil {
		return track.Info{}, mapError(err)
	}

	info := infoFromProperties(props)
	info.CapturedAt = capturedAt

	if info.Title == "" {
		return track.Info{}, ErrNoActiveSession
	}
	return info, nil
}

func (s *Service) Pause(ctx context.Context) error {
	return s.call(ctx, "Pause")
}

func (s *Service) Play(ctx context.Context) error {
	return s.call(ctx, "Play")
}

func (s *Service) call(ctx context.Context, method string) error {
	service, err := s.target(ctx)
	if err != nil {
		return err
	}

	err = s.bus.Object(service, mprisPath).CallWithContext(ctx, mprisPlayerIface+"."+method, 0).Err
	if err != nil {
		return fmt.Errorf("%s: %w", strings.ToLower(method), mapError(err))
	}
	return nil
}

// ListPlayers returns every MPRIS player on the session bus, sorted by name.
func ListPlayers(ctx context.Context, bus *dbus.Conn) ([]Player, error) {
	var names []string
	err := bus.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}

	var players []Player
	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		players = append(players, Player{Service: name, Identity: Identity(bus, name)})
	}

	sort.Slice(players, func(i, j int) bool {
		return players[i].Service < players[j].Service
	})
	return players, nil
}

func Identity(bus *dbus.Conn, service string) string {
	variant, err := bus.Object(service, mprisPath).GetProperty(mprisRootIface + ".Identity")
	if err != nil {
		return ""
	}

	identity, ok := variant.Value().(string)
	if !ok {
		return ""
	}
	return identity
}

func mapError(err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) && noSessionErrors[dbusErr.Name] {
		return ErrNoActiveSession
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) && noSessionErrors[dbusErrPtr.Name] {
		return ErrNoActiveSession
	}
	return err
}

func infoFromProperties(props map[string]dbus.Variant) track.Info {
	var info track.Info

	if variant, ok := props["Metadata"]; ok {
		if metadata, ok := variant.Value().(map[string]dbus.Variant); ok {
			info.Title = extractString(metadata, "xesam:title")
			info.Artist = extractArtist(metadata, "xesam:artist")
			info.Album = extractString(metadata, "xesam:album")
			info.ArtworkURL = extractString(metadata, "mpris:artUrl")
			info.TrackID = extractTrackID(metadata, "mpris:trackid")
			info.Duration = extractMicros(metadata, "mpris:length")
		}
	}

	if variant, ok := props["Position"]; ok {
		if micros, ok := variant.Value().(int64); ok && micros > 0 {
			info.Position = time.Duration(micros) * time.Microsecond
		}
	}

	if variant, ok := props["PlaybackStatus"]; ok {
		status, _ := variant.Value().(string)
		info.Status = track.ParseStatus(status)
	}

	return info
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	text, ok := variant.Value().(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

// extractArtist joins multi-artist lists with ", ".
func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case []string:
		var artists []string
		for _, a := range typed {
			if a = strings.TrimSpace(a); a != "" {
				artists = append(artists, a)
			}
		}
		return strings.Join(artists, ", ")
	case string:
		return strings.TrimSpace(typed)
	default:
		return ""
	}
}

func extractTrackID(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case dbus.ObjectPath:
		return string(typed)
	case string:
		return typed
	default:
		return ""
	}
}

func extractMicros(metadata map[string]dbus.Variant, key string) time.Duration {
	variant, exists := metadata[key]
	if !exists {
		return 0
	}

	switch typed := variant.Value().(type) {
	case int64:
		if typed <= 0 {
			return 0
		}
		return time.Duration(typed) * time.Microsecond
	case uint64:
		return time.Duration(typed) * time.Microsecond
	case int32:
		if typed <= 0 {
			return 0
		}
		return time.Duration(typed) * time.Microsecond
	default:
		return 0
	}
}
