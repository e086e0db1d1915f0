// Package scan runs the poll-diff-notify-save cycle: fetch live status for
// the configured channels from Helix, diff against the persisted snapshot,
// hand transitions to the notifiers, and persist the new snapshot.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/twitch-alerts/notify"
	"github.com/onnwee/twitch-alerts/state"
	"github.com/onnwee/twitch-alerts/telemetry"
	"github.com/onnwee/twitch-alerts/twitchapi"
)

// StreamLister is the slice of the Helix client the scanner needs.
type StreamLister interface {
	GetStreams(ctx context.Context, logins []string) ([]twitchapi.Stream, error)
}

// Scanner owns one scan pipeline. It is single-flight: Run never overlaps
// scans, and the snapshot store is assumed to have no other writers.
type Scanner struct {
	Helix     StreamLister
	Store     state.Store
	Notifiers []notify.Notifier
	Channels  []string

	// Interval only affects Run's ticker and notifier message wording.
	Interval time.Duration

	mu       sync.Mutex
	lastScan time.Time
	lastErr  error
	lastLive []string
	scanned  bool
}

// Result summarizes one completed scan.
type Result struct {
	Live   []string
	Events []notify.Event
}

// RunOnce performs a single scan. Notifier failures are logged and isolated;
// they neither abort the scan nor prevent the snapshot save. Helix and store
// errors abort the scan before anything is overwritten.
func (s *Scanner) RunOnce(ctx context.Context) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "scanner", "scan",
		attribute.Int("channels", len(s.Channels)))
	defer span.End()

	if telemetry.ScansTotal != nil {
		telemetry.ScansTotal.Inc()
	}
	var res Result
	var err error
	telemetry.TimeFunc(telemetry.ScanDuration, func() {
		res, err = s.runOnce(ctx)
	})
	if err != nil {
		if telemetry.ScanErrorsTotal != nil {
			telemetry.ScanErrorsTotal.Inc()
		}
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanSuccess(span)
	}

	s.mu.Lock()
	s.lastScan = time.Now()
	s.lastErr = err
	s.lastLive = res.Live
	s.scanned = true
	s.mu.Unlock()
	return res, err
}

func (s *Scanner) runOnce(ctx context.Context) (Result, error) {
	streams, err := s.Helix.GetStreams(ctx, s.Channels)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	// Helix canonicalizes user_login to lowercase; compare case-insensitively
	// so a mixed-case config entry still matches its stream row.
	byLogin := make(map[string]twitchapi.Stream, len(streams))
	for _, st := range streams {
		byLogin[strings.ToLower(st.UserLogin)] = st
	}
	// Configured channels with no stream row are offline.
	current := make(map[string]bool, len(s.Channels))
	for _, ch := range s.Channels {
		st, ok := byLogin[strings.ToLower(ch)]
		current[ch] = ok && st.IsLive()
	}

	prev, err := s.Store.Load(ctx)
	if err != nil {
		if !errors.Is(err, state.ErrCorrupt) {
			return Result{}, err
		}
		// Disposable by contract: start over from empty.
		slog.Warn("state file corrupt, treating as empty", slog.Any("err", err))
		prev = state.Snapshot{}
	}

	events := Diff(prev, current, s.Channels, byLogin, now)
	if telemetry.TransitionsToLive != nil {
		telemetry.TransitionsToLive.Add(float64(len(events)))
	}
	slog.Info("scan complete",
		slog.Int("channels", len(s.Channels)),
		slog.Int("live", len(byLogin)),
		slog.Int("newly_live", len(events)))

	if len(events) > 0 {
		s.dispatch(ctx, events)
	}

	snap := make(state.Snapshot, len(current))
	var live []string
	for _, ch := range s.Channels {
		snap[ch] = state.ChannelStatus{IsLive: current[ch], LastChecked: now}
		if current[ch] {
			live = append(live, ch)
		}
	}
	if err := s.Store.Save(ctx, snap); err != nil {
		return Result{}, err
	}
	telemetry.SetChannelsLive(len(live))
	return Result{Live: live, Events: events}, nil
}

// dispatch fans events out to every notifier, isolating failures.
func (s *Scanner) dispatch(ctx context.Context, events []notify.Event) {
	for _, n := range s.Notifiers {
		if err := n.Notify(ctx, events); err != nil {
			if telemetry.NotificationsFailed != nil {
				telemetry.NotificationsFailed.WithLabelValues(n.Name()).Inc()
			}
			slog.Error("notification failed", slog.String("notifier", n.Name()), slog.Any("err", err))
			continue
		}
		if telemetry.NotificationsSent != nil {
			telemetry.NotificationsSent.WithLabelValues(n.Name()).Inc()
		}
		slog.Info("notification sent", slog.String("notifier", n.Name()), slog.Int("events", len(events)))
	}
}

// Run scans immediately and then on every interval tick until ctx is done.
// Per-scan errors are logged and swallowed to keep the loop alive; only
// context cancellation stops it.
func (s *Scanner) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("scan loop started", slog.Duration("interval", interval), slog.Int("channels", len(s.Channels)))
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			slog.Error("scan failed", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			slog.Info("scan loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Status reports the last scan for the readiness and status endpoints.
func (s *Scanner) Status() (lastScan time.Time, live []string, scanned bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan, s.lastLive, s.scanned, s.lastErr
}
