// Package storefront handles WooCommerce order webhooks.
package storefront

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/internal/events"
	"github.com/wolfman30/wellness-commerce-bot/internal/ledger"
	"github.com/wolfman30/wellness-commerce-bot/internal/messaging"
	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

var (
	// ErrMissingPhone rejects orders without billing.phone.
	ErrMissingPhone = errors.New("storefront: billing.phone is required")
	// ErrInvalidPayload rejects bodies that are not an order.
	ErrInvalidPayload = errors.New("storefront: invalid JSON payload")
)

const maxBodyBytes = 1 << 20

// Order is the subset of a WooCommerce order the bot reads.
type Order struct {
	Billing struct {
		Phone     string `json:"phone"`
		FirstName string `json:"first_name"`
	} `json:"billing"`
	LineItems []struct {
		Name string `json:"name"`
	} `json:"line_items"`
}

// Items returns the line item names.
func (o Order) Items() []string {
	items := make([]string, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, li.Name)
	}
	return items
}

// SlotLister lists the slots offered to therapy buyers.
type SlotLister interface {
	ListAvailableSlots(ctx context.Context, now time.Time, horizonDays, maxResults int) ([]availability.Slot, error)
}

// Sender delivers a chat message.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// EbookCampaign starts the day-6/day-7 follow-ups.
type EbookCampaign interface {
	StartEbook(userID string)
}

// OrderNotifier announces orders to the owner.
type OrderNotifier interface {
	NotifyOrder(ctx context.Context, name, phone string, items []string)
}

// Config wires a Handler. Dedup, Notifier and Secret are optional.
type Config struct {
	Slots       SlotLister
	Ledger      ledger.Ledger
	Campaigns   EbookCampaign
	Sender      Sender
	Catalog     *catalog.Catalog
	Notifier    OrderNotifier
	Dedup       events.Deduper
	IsTherapy   func(name string) bool
	Secret      string
	HorizonDays int
	MaxSlots    int
	Now         func() time.Time
	Metrics     *metrics.BotMetrics
	Logger      *logging.Logger
}

// Handler serves GET and POST /webhook.
type Handler struct {
	cfg    Config
	logger *logging.Logger
}

func NewHandler(cfg Config) *Handler {
	switch {
	case cfg.Slots == nil:
		panic("storefront: slot lister required")
	case cfg.Ledger == nil:
		panic("storefront: ledger required")
	case cfg.Campaigns == nil:
		panic("storefront: campaigns required")
	case cfg.Sender == nil:
		panic("storefront: sender required")
	case cfg.Catalog == nil:
		panic("storefront: catalog required")
	case cfg.IsTherapy == nil:
		panic("storefront: therapy matcher required")
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = availability.DefaultHorizonDays
	}
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = availability.DefaultMaxResults
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Handler{cfg: cfg, logger: cfg.Logger.Named("storefront")}
}

// Liveness answers GET /webhook.
func (h *Handler) Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Webhook activo"))
}

// Receive answers POST /webhook.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.cfg.Metrics.ObserveWebhookLatency("storefront", time.Since(start).Seconds()) }()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if h.cfg.Secret != "" && !verifySignature(h.cfg.Secret, payload, r.Header.Get("X-WC-Webhook-Signature")) {
		h.logger.Warn("invalid storefront webhook signature")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	order, err := decodeOrder(payload)
	if err != nil {
		h.logger.Warn("rejected storefront webhook", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	claimed := ""
	if id := r.Header.Get("X-WC-Webhook-Delivery-ID"); h.cfg.Dedup != nil && id != "" {
		fresh, err := h.cfg.Dedup.MarkProcessed(ctx, events.SourceStorefront, id)
		switch {
		case err != nil:
			h.logger.Warn("storefront dedup check failed", "delivery_id", id, "error", err)
		case !fresh:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		default:
			claimed = id
		}
	}

	if err := h.HandleOrder(ctx, order); err != nil {
		if claimed != "" {
			// The delivery failed; WooCommerce's retry must be handled, not dropped.
			if rerr := h.cfg.Dedup.Release(context.WithoutCancel(ctx), events.SourceStorefront, claimed); rerr != nil {
				h.logger.Error("storefront dedup release failed", "delivery_id", claimed, "error", rerr)
			}
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeOrder(payload []byte) (Order, error) {
	var order Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	order.Billing.Phone = messaging.CanonicalPhone(order.Billing.Phone)
	if order.Billing.Phone == "" {
		return Order{}, ErrMissingPhone
	}
	return order, nil
}

// HandleOrder sends the purchase reply and records the conversion. Only a
// failed reply is returned; ledger and notification failures are logged.
func (h *Handler) HandleOrder(ctx context.Context, order Order) error {
	userID := order.Billing.Phone
	name := order.Billing.FirstName
	items := order.Items()
	logger := h.logger.ForUser(userID)

	therapy := false
	for _, item := range items {
		if h.cfg.IsTherapy(item) {
			therapy = true
			break
		}
	}

	var body string
	if therapy {
		slots, err := h.cfg.Slots.ListAvailableSlots(ctx, h.cfg.Now(), h.cfg.HorizonDays, h.cfg.MaxSlots)
		if err != nil {
			logger.Warn("availability lookup failed for therapy purchase", "error", err)
		}
		body = h.cfg.Catalog.TherapyPurchase(name, availability.Strings(slots))
	} else {
		body = h.cfg.Catalog.EbookGift(name)
	}

	if _, err := h.cfg.Sender.Send(ctx, userID, body); err != nil {
		logger.Error("purchase reply failed", "error", err)
		return fmt.Errorf("storefront: reply failed: %w", err)
	}

	reason := ledger.ReasonPurchase
	if !therapy {
		reason = ledger.ReasonEbook
	}
	if _, err := h.cfg.Ledger.MarkConverted(ctx, userID, reason); err != nil {
		logger.Error("mark conversion failed", "error", err)
	}
	if !therapy {
		h.cfg.Campaigns.StartEbook(userID)
	}
	if h.cfg.Notifier != nil {
		h.cfg.Notifier.NotifyOrder(ctx, name, userID, items)
	}
	logger.Info("storefront order handled", "therapy", therapy, "items", len(items))
	return nil
}

// verifySignature checks the base64 HMAC-SHA256 WooCommerce puts in
// X-WC-Webhook-Signature.
func verifySignature(secret string, payload []byte, header string) bool {
	provided, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header))
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"status": "error", "detail": detail})
}
