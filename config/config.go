// Package config loads the TOML config file and environment overrides and
// provides a typed Config used across the service. The config file carries
// the channel list and Twitch client id; secrets and notifier routes come
// from the environment (optionally via .env).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/onnwee/twitch-alerts/state"
)

// DefaultFile is the config path used when no CLI argument is given.
const DefaultFile = "twitch-alerts.toml"

// DefaultScanInterval is how often the daemon polls when unconfigured.
const DefaultScanInterval = 5 * time.Minute

type Config struct {
	// Twitch
	ClientID     string
	ClientSecret string
	Channels     []string

	// Notifier routes; empty disables the route.
	DiscordWebhookURL string
	PagerDutyKey      string

	// Scan loop
	ScanInterval time.Duration
	StateFile    string
}

// fileConfig is the on-disk TOML shape.
type fileConfig struct {
	TwitchClientID     string   `toml:"twitch_client_id"`
	TwitchClientSecret string   `toml:"twitch_client_secret"`
	TwitchChannelNames []string `toml:"twitch_channel_names"`
	ScanInterval       string   `toml:"scan_interval"`
	StateFile          string   `toml:"state_file"`
}

// Load reads the TOML file at path (DefaultFile when empty) and applies
// environment overrides. The client secret env always wins over the file so
// the secret can stay out of version control.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFile
	}
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg := &Config{
		ClientID:     fc.TwitchClientID,
		ClientSecret: fc.TwitchClientSecret,
		Channels:     dedupe(fc.TwitchChannelNames),
		ScanInterval: DefaultScanInterval,
		StateFile:    fc.StateFile,
	}
	if cfg.StateFile == "" {
		cfg.StateFile = state.DefaultFile
	}
	if fc.ScanInterval != "" {
		d, err := time.ParseDuration(fc.ScanInterval)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid scan_interval %q in %s", fc.ScanInterval, path)
		}
		cfg.ScanInterval = d
	}

	if v := os.Getenv("TWITCH_ALERT_CLIENT_SECRET"); v != "" {
		cfg.ClientSecret = v
	}
	cfg.DiscordWebhookURL = os.Getenv("TWITCH_ALERT_DISCORD_WEBHOOK")
	cfg.PagerDutyKey = os.Getenv("TWITCH_ALERT_PAGERDUTY_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields every run requires.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("missing twitch_client_id in config")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("missing twitch client secret: set TWITCH_ALERT_CLIENT_SECRET or twitch_client_secret")
	}
	if len(c.Channels) == 0 {
		return fmt.Errorf("missing twitch_channel_names in config")
	}
	return nil
}

// dedupe lowercases channel names and removes duplicates while preserving
// first-seen order, which also fixes the iteration order of emitted alerts.
// Helix canonicalizes logins to lowercase, so mixed-case entries would
// otherwise never match a streams response.
func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
