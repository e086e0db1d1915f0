package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/onnwee/twitch-alerts/scan"
)

// Handlers carries the scanner handle the endpoints report on.
type Handlers struct {
	scanner *scan.Scanner
}

// HandleHealthz responds to liveness probes. The process being up is the
// whole check; upstream APIs are covered by readiness.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready once at least one scan has completed without a
// poll error.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, _ *http.Request) {
	_, _, scanned, err := h.scanner.Status()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case !scanned:
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "failed_check": "first_scan"})
	case err != nil:
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "failed_check": "last_scan", "error": err.Error()})
	default:
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}

type statusResponse struct {
	LastScan     time.Time `json:"last_scan"`
	LastScanOK   bool      `json:"last_scan_ok"`
	LastError    string    `json:"last_error,omitempty"`
	LiveChannels []string  `json:"live_channels"`
}

// HandleStatus reports the outcome of the most recent scan.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	lastScan, live, _, err := h.scanner.Status()
	resp := statusResponse{
		LastScan:     lastScan,
		LastScanOK:   err == nil,
		LiveChannels: live,
	}
	if resp.LiveChannels == nil {
		resp.LiveChannels = []string{}
	}
	if err != nil {
		resp.LastError = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
