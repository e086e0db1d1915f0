package scan

import (
	"strings"
	"time"

	"github.com/onnwee/twitch-alerts/notify"
	"github.com/onnwee/twitch-alerts/state"
	"github.com/onnwee/twitch-alerts/twitchapi"
)

// Diff compares the previous snapshot against the current live map and
// returns one alert event per offline-to-live transition, in the order of
// the configured channel list. A channel absent from the previous snapshot
// counts as offline; channels that were dropped from the config simply stop
// appearing, they are never alerted. The streams map is keyed by the
// canonical lowercase login.
func Diff(prev state.Snapshot, current map[string]bool, order []string, streams map[string]twitchapi.Stream, now time.Time) []notify.Event {
	var events []notify.Event
	for _, channel := range order {
		live, ok := current[channel]
		if !ok || !live {
			continue
		}
		if prev[channel].IsLive {
			continue
		}
		ev := notify.Event{Channel: channel, At: now}
		if s, ok := streams[strings.ToLower(channel)]; ok {
			ev.Title = s.Title
			ev.Game = s.GameName
			ev.ThumbnailURL = s.ThumbnailURL
			ev.StartedAt = s.StartedAt
		}
		events = append(events, ev)
	}
	return events
}
