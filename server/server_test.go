package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/twitch-alerts/scan"
	"github.com/onnwee/twitch-alerts/state"
	"github.com/onnwee/twitch-alerts/twitchapi"
)

type staticHelix struct{ streams []twitchapi.Stream }

func (s *staticHelix) GetStreams(_ context.Context, _ []string) ([]twitchapi.Stream, error) {
	return s.streams, nil
}

func newTestScanner() *scan.Scanner {
	return &scan.Scanner{
		Helix: &staticHelix{streams: []twitchapi.Stream{
			{UserLogin: "alice", Type: "live"},
		}},
		Store:    state.NewMemStore(nil),
		Channels: []string{"alice", "bob"},
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(NewMux(newTestScanner()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Correlation-ID") == "" {
		t.Error("missing X-Correlation-ID header")
	}
}

func TestReadyzBeforeAndAfterScan(t *testing.T) {
	scanner := newTestScanner()
	srv := httptest.NewServer(NewMux(scanner))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/readyz before first scan status = %d, want 503", resp.StatusCode)
	}

	if _, err := scanner.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	resp, err = http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/readyz after scan status = %d, want 200", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	scanner := newTestScanner()
	if _, err := scanner.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewMux(scanner))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		LastScanOK   bool     `json:"last_scan_ok"`
		LiveChannels []string `json:"live_channels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.LastScanOK {
		t.Error("last_scan_ok = false after a clean scan")
	}
	if len(body.LiveChannels) != 1 || body.LiveChannels[0] != "alice" {
		t.Errorf("live_channels = %v, want [alice]", body.LiveChannels)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewMux(newTestScanner()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", resp.StatusCode)
	}
}
