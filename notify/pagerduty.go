package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

const pagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

// PagerDuty triggers an Events API v2 alert at fixed info severity.
type PagerDuty struct {
	IntegrationKey string
	HTTPClient     *http.Client

	// EventsURL overrides the PagerDuty endpoint, for tests.
	EventsURL string
}

func NewPagerDuty(integrationKey string) *PagerDuty {
	return &PagerDuty{IntegrationKey: integrationKey}
}

func (p *PagerDuty) Name() string { return "pagerduty" }

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	CustomDetails map[string]string `json:"custom_details"`
}

// Notify posts one trigger event covering all newly live channels.
func (p *PagerDuty) Notify(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	details := make(map[string]string, len(events))
	for _, ev := range events {
		details[ev.Channel] = ev.URL()
	}

	event := pagerDutyEvent{
		RoutingKey:  p.IntegrationKey,
		EventAction: "trigger",
		DedupKey:    uuid.New().String(),
		Payload: pagerDutyPayload{
			Summary:       "New TwitchTV channel(s) detected as live.",
			Source:        "Twitch-Alerts",
			Severity:      "info",
			CustomDetails: details,
		},
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("pagerduty: encode event: %w", err)
	}
	url := p.EventsURL
	if url == "" {
		url = pagerDutyEventsURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("pagerduty: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(p.HTTPClient).Do(req)
	if err != nil {
		return fmt.Errorf("pagerduty: send event: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pagerduty: trigger failed: %s: %s", resp.Status, string(b))
	}
	return nil
}
