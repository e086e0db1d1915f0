package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultHelixURL = "https://api.twitch.tv/helix"

// streamsBatchSize is the Helix cap on user_login params per /streams call.
const streamsBatchSize = 100

// helixMaxAttempts bounds retries for transient 5xx responses.
const helixMaxAttempts = 3

// ErrAPI marks transient Helix failures. A scan hitting one aborts without
// touching the snapshot; the next interval tries again.
var ErrAPI = errors.New("twitch: api error")

// Stream is one live stream row from /helix/streams. Offline channels do not
// appear in the response at all.
type Stream struct {
	UserLogin    string    `json:"user_login"`
	Title        string    `json:"title"`
	GameName     string    `json:"game_name"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Type         string    `json:"type"`
	StartedAt    time.Time `json:"started_at"`
}

// IsLive reports whether the stream row is a real live broadcast (Helix may
// also return reruns under a different type).
func (s Stream) IsLive() bool { return s.Type == "live" }

// HelixClient queries stream status for channel logins using an app access
// token. A 401 invalidates the cached token and retries once with a fresh
// one; 5xx responses are retried a bounded number of times.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client

	// BaseURL overrides the Helix endpoint, for tests.
	BaseURL string
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (hc *HelixClient) baseURL() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return defaultHelixURL
}

// GetStreams returns the currently live streams among the given logins,
// chunking requests to respect the per-call login limit. Logins with no
// stream row are offline.
func (hc *HelixClient) GetStreams(ctx context.Context, logins []string) ([]Stream, error) {
	if len(logins) == 0 {
		return nil, nil
	}
	var out []Stream
	for start := 0; start < len(logins); start += streamsBatchSize {
		end := start + streamsBatchSize
		if end > len(logins) {
			end = len(logins)
		}
		streams, err := hc.getStreamsBatch(ctx, logins[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, streams...)
	}
	return out, nil
}

func (hc *HelixClient) getStreamsBatch(ctx context.Context, logins []string) ([]Stream, error) {
	refreshed := false
	var lastStatus string
	for attempt := 0; attempt < helixMaxAttempts; attempt++ {
		tok, err := hc.AppTokenSource.Get(ctx)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL()+"/streams", nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		for _, login := range logins {
			q.Add("user_login", login)
		}
		req.URL.RawQuery = q.Encode()
		req.Header.Set("Client-Id", hc.ClientID)
		req.Header.Set("Authorization", "Bearer "+tok)

		resp, err := hc.http().Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: streams request: %v", ErrAPI, err)
		}
		streams, status, retry, err := hc.readStreams(resp)
		if err == nil {
			return streams, nil
		}
		lastStatus = status
		if status == "401" && !refreshed {
			// Token rejected mid-lifetime; force a fresh one and retry.
			hc.AppTokenSource.Invalidate()
			refreshed = true
			attempt--
			continue
		}
		if !retry {
			return nil, err
		}
		slog.Debug("helix streams retry", slog.Int("attempt", attempt+1), slog.String("status", status))
	}
	return nil, fmt.Errorf("%w: streams request exhausted retries (last status %s)", ErrAPI, lastStatus)
}

// readStreams decodes one response. retry reports whether the failure is
// worth another attempt.
func (hc *HelixClient) readStreams(resp *http.Response) (streams []Stream, status string, retry bool, err error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("failed to close response body", slog.Any("err", cerr))
		}
	}()
	switch {
	case resp.StatusCode == http.StatusOK:
		var body struct {
			Data []Stream `json:"data"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&body); derr != nil {
			return nil, "200", false, fmt.Errorf("%w: decode streams response: %v", ErrAPI, derr)
		}
		return body.Data, "200", false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		b, _ := io.ReadAll(resp.Body)
		return nil, "401", false, fmt.Errorf("%w: streams request rejected: %s", ErrUnauthorized, string(b))
	case resp.StatusCode >= 500:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Sprintf("%d", resp.StatusCode), true,
			fmt.Errorf("%w: streams request failed: %s: %s", ErrAPI, resp.Status, string(b))
	default:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Sprintf("%d", resp.StatusCode), false,
			fmt.Errorf("%w: streams request failed: %s: %s", ErrAPI, resp.Status, string(b))
	}
}
