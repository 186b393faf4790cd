package messaging

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const sendAttempts = 3

// messageCreator is the subset of the Twilio REST API the sender uses.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSender delivers WhatsApp messages through the Twilio REST API.
type TwilioSender struct {
	api     messageCreator
	from    string
	metrics *metrics.BotMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
	sleep   func(time.Duration)
}

// NewTwilioSender builds a sender. from is the WhatsApp sender address,
// e.g. "whatsapp:+14155238886".
func NewTwilioSender(accountSID, authToken, from string, m *metrics.BotMetrics, logger *logging.Logger) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("messaging: twilio credentials missing")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioSenderWithAPI(client.Api, from, m, logger)
}

func newTwilioSenderWithAPI(api messageCreator, from string, m *metrics.BotMetrics, logger *logging.Logger) (*TwilioSender, error) {
	if strings.TrimSpace(from) == "" {
		return nil, errors.New("messaging: from required")
	}
	if !strings.HasPrefix(from, whatsappPrefix) {
		from = WhatsAppAddress(from)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		api:     api,
		from:    from,
		metrics: m,
		logger:  logger.Named("twilio"),
		tracer:  otel.Tracer("wellness.internal.messaging.twilio"),
		sleep:   time.Sleep,
	}, nil
}

// Send delivers body to the user id to and returns the message SID.
// Transient failures are retried; 4xx responses other than 429 are not.
func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	address := WhatsAppAddress(to)
	if address == "" {
		return "", errors.New("messaging: to required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("messaging: body required")
	}

	ctx, span := s.tracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("wellness.to", address))

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(address)
	params.SetFrom(s.from)
	params.SetBody(body)

	var lastErr error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		msg, err := s.api.CreateMessage(params)
		if err == nil {
			sid := ""
			if msg != nil && msg.Sid != nil {
				sid = *msg.Sid
			}
			s.metrics.ObserveOutbound("sent")
			s.logger.ForUser(to).Info("whatsapp message sent", "sid", sid, "attempt", attempt)
			return sid, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		if attempt < sendAttempts {
			s.sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}

	span.RecordError(lastErr)
	s.metrics.ObserveOutbound("failed")
	s.logger.ForUser(to).Error("whatsapp send failed", "error", lastErr)
	return "", fmt.Errorf("messaging: send to %s: %w", to, lastErr)
}

func retryable(err error) bool {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return restErr.Status == 429 || restErr.Status >= 500
	}
	return true
}

// LogSender logs messages instead of delivering them. Used when no
// transport credentials are configured.
type LogSender struct {
	logger *logging.Logger
}

func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger.Named("log_sender")}
}

func (s *LogSender) Send(_ context.Context, to, body string) (string, error) {
	id := "log-" + uuid.NewString()
	s.logger.ForUser(to).Info("outbound message (not delivered)", "id", id, "body", body)
	return id, nil
}
