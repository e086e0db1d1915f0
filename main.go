// Command twitch-alerts is the run-forever daemon. It:
//   - Loads configuration (TOML file plus environment) and initializes
//     structured logging.
//   - Polls the Twitch Helix streams endpoint on an interval, diffs against
//     the JSON snapshot file, and notifies Discord/PagerDuty on
//     offline-to-live transitions.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and
//     /metrics.
//
// An optional first argument overrides the config file path. Shutdown is
// graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/twitch-alerts/config"
	"github.com/onnwee/twitch-alerts/notify"
	"github.com/onnwee/twitch-alerts/scan"
	"github.com/onnwee/twitch-alerts/server"
	"github.com/onnwee/twitch-alerts/state"
	"github.com/onnwee/twitch-alerts/telemetry"
	"github.com/onnwee/twitch-alerts/twitchapi"
)

func main() {
	// Load .env if present (local dev convenience; production uses real env).
	_ = godotenv.Load()

	initLogging()

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	telemetry.SetChannelsWatched(len(cfg.Channels))

	shutdown, err := telemetry.InitTracing("twitch-alerts", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	ts := &twitchapi.TokenSource{ClientID: cfg.ClientID, ClientSecret: cfg.ClientSecret}

	// Verify credentials up front: bad credentials are fatal at startup,
	// a transient outage is not.
	authCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	if tok, err := ts.Get(authCtx); err != nil {
		if errors.Is(err, twitchapi.ErrUnauthorized) {
			slog.Error("twitch authentication failed", slog.Any("err", err))
			cancel()
			os.Exit(1)
		}
		slog.Warn("twitch app token fetch failed, will retry on first scan", slog.Any("err", err))
	} else if len(tok) > 6 {
		slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
	}
	cancel()

	scanner := &scan.Scanner{
		Helix:     &twitchapi.HelixClient{AppTokenSource: ts, ClientID: cfg.ClientID},
		Store:     state.NewFileStore(cfg.StateFile),
		Notifiers: buildNotifiers(cfg),
		Channels:  cfg.Channels,
		Interval:  cfg.ScanInterval,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	go func() {
		if err := server.Start(ctx, scanner, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	scanner.Run(ctx)
	slog.Info("shutting down")
}

// buildNotifiers constructs only the routes with configuration present.
func buildNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.DiscordWebhookURL != "" {
		notifiers = append(notifiers, notify.NewDiscord(cfg.DiscordWebhookURL, cfg.ScanInterval))
	} else {
		slog.Info("no discord webhook given, skipping notification route")
	}
	if cfg.PagerDutyKey != "" {
		notifiers = append(notifiers, notify.NewPagerDuty(cfg.PagerDutyKey))
	} else {
		slog.Info("no pagerduty key given, skipping notification route")
	}
	return notifiers
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text|json).
func initLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}
