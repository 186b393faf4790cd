package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/internal/config"
	"github.com/wolfman30/wellness-commerce-bot/internal/conversation"
	"github.com/wolfman30/wellness-commerce-bot/internal/followup"
	"github.com/wolfman30/wellness-commerce-bot/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/wellness-commerce-bot/internal/http/middleware"
	"github.com/wolfman30/wellness-commerce-bot/internal/ledger"
	"github.com/wolfman30/wellness-commerce-bot/internal/messaging"
	"github.com/wolfman30/wellness-commerce-bot/internal/storefront"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const adminSecret = "admin-secret"

type noSlots struct{}

func (noSlots) ListAvailableSlots(context.Context, time.Time, int, int) ([]availability.Slot, error) {
	return nil, nil
}

type noopSender struct{}

func (noopSender) Send(context.Context, string, string) (string, error) { return "SM1", nil }

type noopCampaigns struct{}

func (noopCampaigns) StartEbook(string) {}

type noFollowups struct{}

func (noFollowups) Active() []followup.TimerInfo { return nil }

type noopBooker struct{}

func (noopBooker) Book(ctx context.Context, req booking.Request) (*booking.Result, error) {
	return &booking.Result{EventID: "evt", Start: req.Slot.Start, End: req.Slot.End()}, nil
}

type testRouter struct {
	handler http.Handler
	queue   *conversation.MemoryQueue
}

func newTestRouter(t *testing.T, limiter *httpmiddleware.RateLimiter) *testRouter {
	t.Helper()
	logger := logging.Default()
	cfg := &config.Config{TherapyProducts: []string{"Terapia individual"}}
	store := ledger.NewMemoryStore()
	queue := conversation.NewMemoryQueue(4)

	return &testRouter{
		queue: queue,
		handler: New(&Config{
			Logger: logger,
			Storefront: storefront.NewHandler(storefront.Config{
				Slots:     noSlots{},
				Ledger:    store,
				Campaigns: noopCampaigns{},
				Sender:    noopSender{},
				Catalog:   catalog.New(config.ProductLinks{}),
				IsTherapy: cfg.IsTherapyProduct,
				Logger:    logger,
			}),
			Inbound: messaging.NewInboundHandler(conversation.NewPublisher(queue, logger), nil, nil, nil, logger),
			Admin: handlers.NewAdminHandler(handlers.AdminConfig{
				Followups: noFollowups{},
				Slots:     noSlots{},
				Booker:    noopBooker{},
				Ledger:    store,
				Logger:    logger,
			}),
			AdminJWTSecret: adminSecret,
			WebhookLimiter: limiter,
		}),
	}
}

func TestRouterHealthEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	rr := httptest.NewRecorder()
	r.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRouterStorefrontWebhook(t *testing.T) {
	r := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	r.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	body := `{"billing":{"phone":"5512345678","first_name":"Ana"},"line_items":[{"name":"Libro"}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	r.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestRouterIncomingEnqueues(t *testing.T) {
	r := newTestRouter(t, nil)

	form := url.Values{"From": {"whatsapp:+5215512345678"}, "Body": {"hola"}, "MessageSid": {"SM1"}}
	req := httptest.NewRequest(http.MethodPost, "/incoming", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	r.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, r.queue.Len())
}

func TestRouterAdminRequiresToken(t *testing.T) {
	r := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	r.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/followups", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token, err := httpmiddleware.IssueAdminToken(adminSecret, "owner", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/admin/followups", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	r.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"count":0`)
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	h := New(&Config{Admin: handlers.NewAdminHandler(handlers.AdminConfig{
		Followups: noFollowups{},
		Slots:     noSlots{},
		Booker:    noopBooker{},
		Ledger:    ledger.NewMemoryStore(),
	})})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/followups", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouterRateLimitsWebhooks(t *testing.T) {
	r := newTestRouter(t, httpmiddleware.NewRateLimiter(0, 1))

	first := httptest.NewRecorder()
	r.handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	second := httptest.NewRecorder()
	r.handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	health := httptest.NewRecorder()
	r.handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}
