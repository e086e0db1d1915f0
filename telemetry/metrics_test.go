package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsInitialized(t *testing.T) {
	Init()

	if ScansTotal == nil {
		t.Error("ScansTotal counter not initialized")
	}
	if ScanErrorsTotal == nil {
		t.Error("ScanErrorsTotal counter not initialized")
	}
	if TransitionsToLive == nil {
		t.Error("TransitionsToLive counter not initialized")
	}
	if NotificationsSent == nil || NotificationsFailed == nil {
		t.Error("notification counter vecs not initialized")
	}
	if ScanDuration == nil {
		t.Error("ScanDuration histogram not initialized")
	}
	if ChannelsLiveGauge == nil || ChannelsWatchedGauge == nil {
		t.Error("channel gauges not initialized")
	}

	// Init is idempotent; a second call must not re-register.
	Init()
}

func TestGaugesAcceptValues(t *testing.T) {
	Init()

	for _, n := range []int{0, 1, 50} {
		SetChannelsLive(n)
		SetChannelsWatched(n)
	}
}

func TestNotificationCounterLabels(t *testing.T) {
	Init()

	NotificationsSent.WithLabelValues("discord").Inc()
	NotificationsFailed.WithLabelValues("pagerduty").Inc()
}

func TestTimeFuncRecordsObservation(t *testing.T) {
	testHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Help:    "Test duration",
		Buckets: prometheus.DefBuckets,
	})
	prometheus.MustRegister(testHistogram)
	defer prometheus.Unregister(testHistogram)

	executed := false
	duration := TimeFunc(testHistogram, func() {
		time.Sleep(10 * time.Millisecond)
		executed = true
	})

	if !executed {
		t.Error("TimeFunc did not execute provided function")
	}
	if duration < 10*time.Millisecond {
		t.Errorf("TimeFunc duration = %v, want >= 10ms", duration)
	}

	metric := &dto.Metric{}
	if err := testHistogram.Write(metric); err != nil {
		t.Fatalf("Failed to write metric: %v", err)
	}
	if metric.Histogram == nil || *metric.Histogram.SampleCount == 0 {
		t.Error("TimeFunc did not record observation in histogram")
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := WithCorrelation(context.Background(), "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation() = %q, want abc-123", got)
	}
	if got := GetCorrelation(context.Background()); got != "" {
		t.Errorf("GetCorrelation() on bare context = %q, want empty", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
