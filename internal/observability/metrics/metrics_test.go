package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestBotMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)
	m.ObserveInbound("accept_free")
	m.ObserveOutbound("sent")
	m.ObserveFollowup("reminder", "sent")
	m.ObserveBooking(true, "committed")
	m.ObserveCalendarDayFailure()
	m.ObserveWebhookLatency("incoming", 0.2)

	if got := testutil.ToFloat64(m.bookingTotal.WithLabelValues("free", "committed")); got != 1 {
		t.Fatalf("expected one free booking, got %v", got)
	}
	if got := testutil.ToFloat64(m.calendarDayFailure); got != 1 {
		t.Fatalf("expected one day failure, got %v", got)
	}
}

func TestBotMetricsHistogramSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)
	m.ObserveWebhookLatency("storefront", 0.5)
	m.ObserveWebhookLatency("storefront", 1.5)

	var metric dto.Metric
	obs, err := m.webhookLatency.GetMetricWithLabelValues("storefront")
	if err != nil {
		t.Fatalf("lookup histogram: %v", err)
	}
	if err := obs.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 2 {
		t.Fatalf("expected 2 samples, got %d", metric.GetHistogram().GetSampleCount())
	}
}

func TestBotMetricsNilSafe(t *testing.T) {
	var m *BotMetrics
	m.ObserveInbound("fallback")
	m.ObserveOutbound("failed")
	m.ObserveFollowup("day6", "skipped")
	m.ObserveBooking(false, "failed")
	m.ObserveCalendarDayFailure()
	m.ObserveWebhookLatency("incoming", 0.1)
}
