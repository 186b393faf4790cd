package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the chat, follow-up and booking flows.
type BotMetrics struct {
	inboundTotal       *prometheus.CounterVec
	outboundTotal      *prometheus.CounterVec
	followupTotal      *prometheus.CounterVec
	bookingTotal       *prometheus.CounterVec
	calendarDayFailure prometheus.Counter
	webhookLatency     *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "conversation",
			Name:      "inbound_total",
			Help:      "Inbound chat messages by classified intent",
		}, []string{"intent"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Outbound WhatsApp sends",
		}, []string{"status"}),
		followupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "followup",
			Name:      "tasks_total",
			Help:      "Follow-up task executions by kind and outcome",
		}, []string{"kind", "outcome"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Calendar booking attempts",
		}, []string{"type", "status"}),
		calendarDayFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "availability",
			Name:      "day_failures_total",
			Help:      "Days skipped because the free/busy query failed",
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wellness",
			Subsystem: "http",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"webhook"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.followupTotal, m.bookingTotal, m.calendarDayFailure, m.webhookLatency)
	return m
}

func (m *BotMetrics) ObserveInbound(intent string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(intent).Inc()
}

func (m *BotMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *BotMetrics) ObserveFollowup(kind, outcome string) {
	if m == nil {
		return
	}
	m.followupTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *BotMetrics) ObserveBooking(free bool, status string) {
	if m == nil {
		return
	}
	kind := "paid"
	if free {
		kind = "free"
	}
	m.bookingTotal.WithLabelValues(kind, status).Inc()
}

func (m *BotMetrics) ObserveCalendarDayFailure() {
	if m == nil {
		return
	}
	m.calendarDayFailure.Inc()
}

func (m *BotMetrics) ObserveWebhookLatency(webhook string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(webhook).Observe(seconds)
}
