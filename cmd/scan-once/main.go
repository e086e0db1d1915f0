// Command scan-once performs a single poll-diff-notify-save cycle and exits.
// Exit code 0 means the scan completed; any fatal error (config, auth, API,
// state save) exits non-zero. An optional first argument overrides the
// config file path.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/onnwee/twitch-alerts/config"
	"github.com/onnwee/twitch-alerts/notify"
	"github.com/onnwee/twitch-alerts/scan"
	"github.com/onnwee/twitch-alerts/state"
	"github.com/onnwee/twitch-alerts/twitchapi"
)

func main() {
	_ = godotenv.Load()

	lvl := slog.LevelInfo
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	ts := &twitchapi.TokenSource{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}
	var notifiers []notify.Notifier
	if cfg.DiscordWebhookURL != "" {
		notifiers = append(notifiers, notify.NewDiscord(cfg.DiscordWebhookURL, cfg.ScanInterval))
	}
	if cfg.PagerDutyKey != "" {
		notifiers = append(notifiers, notify.NewPagerDuty(cfg.PagerDutyKey))
	}
	scanner := &scan.Scanner{
		Helix:     &twitchapi.HelixClient{AppTokenSource: ts, ClientID: cfg.ClientID},
		Store:     state.NewFileStore(cfg.StateFile),
		Notifiers: notifiers,
		Channels:  cfg.Channels,
		Interval:  cfg.ScanInterval,
	}

	if _, err := scanner.RunOnce(context.Background()); err != nil {
		slog.Error("scan failed", slog.Any("err", err))
		os.Exit(1)
	}
}
