package messaging

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/wellness-commerce-bot/internal/conversation"
	"github.com/wolfman30/wellness-commerce-bot/internal/events"
	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const enqueueTimeout = 2 * time.Second

// Enqueuer hands an inbound message to the conversation workers.
type Enqueuer interface {
	EnqueueInbound(ctx context.Context, job conversation.InboundJob) error
}

// InboundHandler serves POST /incoming for the chat transport.
type InboundHandler struct {
	queue     Enqueuer
	dedup     events.Deduper
	validator *SignatureValidator
	metrics   *metrics.BotMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewInboundHandler creates the handler. dedup and validator may be nil.
func NewInboundHandler(queue Enqueuer, dedup events.Deduper, validator *SignatureValidator, m *metrics.BotMetrics, logger *logging.Logger) *InboundHandler {
	if queue == nil {
		panic("messaging: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &InboundHandler{
		queue:     queue,
		dedup:     dedup,
		validator: validator,
		metrics:   m,
		logger:    logger.Named("inbound"),
		tracer:    otel.Tracer("wellness.internal.messaging.inbound"),
	}
}

func (h *InboundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency("incoming", time.Since(start).Seconds()) }()

	ctx, span := h.tracer.Start(r.Context(), "messaging.inbound")
	defer span.End()

	if h.validator != nil && !h.validator.Valid(r) {
		h.logger.Warn("invalid twilio signature")
		span.RecordError(errors.New("invalid twilio signature"))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("failed to parse inbound form", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	userID := CanonicalPhone(r.PostFormValue("From"))
	text := strings.TrimSpace(r.PostFormValue("Body"))
	sid := r.PostFormValue("MessageSid")
	if userID == "" {
		http.Error(w, "missing From", http.StatusBadRequest)
		return
	}

	claimed := false
	if h.dedup != nil && sid != "" {
		fresh, err := h.dedup.MarkProcessed(ctx, events.SourceTwilio, sid)
		switch {
		case err != nil:
			// Fails open.
			h.logger.ForUser(userID).Warn("dedup check failed", "sid", sid, "error", err)
		case !fresh:
			h.logger.ForUser(userID).Info("duplicate inbound delivery dropped", "sid", sid)
			w.WriteHeader(http.StatusOK)
			return
		default:
			claimed = true
		}
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	if err := h.queue.EnqueueInbound(enqueueCtx, conversation.InboundJob{
		UserID:     userID,
		Text:       text,
		MessageSID: sid,
		ReceivedAt: start.UTC(),
	}); err != nil {
		span.RecordError(err)
		h.logger.ForUser(userID).Error("failed to enqueue inbound message", "sid", sid, "error", err)
		if claimed {
			if rerr := h.dedup.Release(context.WithoutCancel(ctx), events.SourceTwilio, sid); rerr != nil {
				h.logger.ForUser(userID).Error("dedup release failed", "sid", sid, "error", rerr)
			}
		}
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
