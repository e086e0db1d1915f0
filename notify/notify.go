// Package notify delivers alert events to external alerting channels.
// Each Notifier is independent: one failing delivery never blocks another,
// and an unconfigured route is simply not constructed.
package notify

import (
	"context"
	"net/http"
	"time"
)

// Event describes one channel that transitioned from offline to live between
// two consecutive scans. Events are consumed immediately and never persisted.
type Event struct {
	Channel      string
	Title        string
	Game         string
	ThumbnailURL string
	StartedAt    time.Time
	At           time.Time
}

// URL returns the channel's public page.
func (e Event) URL() string { return "https://twitch.tv/" + e.Channel }

// Notifier sends a batch of alert events out to one alerting channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, events []Event) error
}

const defaultTimeout = 10 * time.Second

func httpClient(hc *http.Client) *http.Client {
	if hc != nil {
		return hc
	}
	return &http.Client{Timeout: defaultTimeout}
}
