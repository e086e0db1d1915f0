package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const discordEmbedColor = 0x9C5D7F

// resolveThumbnail fills the size placeholders Helix leaves in thumbnail_url.
func resolveThumbnail(url string) string {
	r := strings.NewReplacer("{width}", "320", "{height}", "180")
	return r.Replace(url)
}

// Discord posts a formatted message to an incoming webhook. All newly live
// channels from one scan are bundled into a single embed.
type Discord struct {
	WebhookURL string
	HTTPClient *http.Client

	// ScanInterval is only used for the message wording ("within the last
	// N minutes").
	ScanInterval time.Duration
}

func NewDiscord(webhookURL string, scanInterval time.Duration) *Discord {
	return &Discord{WebhookURL: webhookURL, ScanInterval: scanInterval}
}

func (d *Discord) Name() string { return "discord" }

type discordEmbed struct {
	Author      discordAuthor     `json:"author"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Thumbnail   *discordThumbnail `json:"thumbnail,omitempty"`
}

type discordAuthor struct {
	Name string `json:"name"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

type discordWebhook struct {
	Username string         `json:"username"`
	Embeds   []discordEmbed `json:"embeds"`
}

// Notify sends one webhook message describing all events.
func (d *Discord) Notify(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	minutes := int(d.ScanInterval.Minutes())
	if minutes <= 0 {
		minutes = 5
	}
	var desc strings.Builder
	var thumbnail *discordThumbnail
	for _, ev := range events {
		fmt.Fprintf(&desc,
			"The following stream has gone live within the last %d minutes:\n## [%s](%s)\n",
			minutes, ev.Channel, ev.URL())
		if ev.Title != "" {
			fmt.Fprintf(&desc, "%s\n", ev.Title)
		}
		if ev.Game != "" {
			fmt.Fprintf(&desc, "Playing: %s\n", ev.Game)
		}
		if !ev.StartedAt.IsZero() {
			fmt.Fprintf(&desc, "Live since <t:%d:R>\n", ev.StartedAt.Unix())
		}
		desc.WriteString("\n")
		if thumbnail == nil && ev.ThumbnailURL != "" {
			thumbnail = &discordThumbnail{URL: resolveThumbnail(ev.ThumbnailURL)}
		}
	}

	payload := discordWebhook{
		Username: "Twitch-Alerts",
		Embeds: []discordEmbed{{
			Author:      discordAuthor{Name: "Twitch-Alerts"},
			Title:       fmt.Sprintf("<t:%d:R>", time.Now().Unix()),
			Description: desc.String(),
			Color:       discordEmbedColor,
			Thumbnail:   thumbnail,
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: encode webhook: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient(d.HTTPClient).Do(req)
	if err != nil {
		return fmt.Errorf("discord: send webhook: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("discord: webhook failed: %s: %s", resp.Status, string(b))
	}
	return nil
}
