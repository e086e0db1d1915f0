// Package telemetry provides Prometheus metrics, optional OpenTelemetry
// tracing, and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ScansTotal          prometheus.Counter
	ScanErrorsTotal     prometheus.Counter
	TransitionsToLive   prometheus.Counter
	NotificationsSent   *prometheus.CounterVec
	NotificationsFailed *prometheus.CounterVec

	// Histograms (seconds)
	ScanDuration prometheus.Observer

	// Gauges
	ChannelsLiveGauge    prometheus.Gauge
	ChannelsWatchedGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ScansTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_alerts_scans_total", Help: "Number of scan cycles started"})
		ScanErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_alerts_scan_errors_total", Help: "Number of scan cycles that aborted with an error"})
		TransitionsToLive = promauto.NewCounter(prometheus.CounterOpts{Name: "twitch_alerts_transitions_to_live_total", Help: "Number of offline-to-live transitions observed"})
		NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "twitch_alerts_notifications_sent_total", Help: "Number of notifications delivered per notifier"}, []string{"notifier"})
		NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "twitch_alerts_notifications_failed_total", Help: "Number of notification deliveries that failed per notifier"}, []string{"notifier"})
		ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "twitch_alerts_scan_duration_seconds", Help: "Scan cycle duration seconds", Buckets: prometheus.DefBuckets})
		ChannelsLiveGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "twitch_alerts_channels_live", Help: "Number of watched channels currently live"})
		ChannelsWatchedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "twitch_alerts_channels_watched", Help: "Number of channels in the configured watch list"})
	})
}

// SetChannelsLive records the live channel count after a completed scan.
func SetChannelsLive(n int) {
	if ChannelsLiveGauge != nil {
		ChannelsLiveGauge.Set(float64(n))
	}
}

// SetChannelsWatched records the configured channel count.
func SetChannelsWatched(n int) {
	if ChannelsWatchedGauge != nil {
		ChannelsWatchedGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
