package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/followup"
	"github.com/wolfman30/wellness-commerce-bot/internal/ledger"
	"github.com/wolfman30/wellness-commerce-bot/internal/messaging"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const (
	maxPreviewDays    = 31
	maxPreviewResults = 100
)

// FollowupLister exposes the pending follow-up timers.
type FollowupLister interface {
	Active() []followup.TimerInfo
}

// SlotLister lists offerable slots.
type SlotLister interface {
	ListAvailableSlots(ctx context.Context, now time.Time, horizonDays, maxResults int) ([]availability.Slot, error)
}

// Booker commits a slot.
type Booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// BookingNotifier announces committed bookings.
type BookingNotifier interface {
	NotifyBooking(ctx context.Context, userID string, res *booking.Result, note string)
}

// CollisionFinder reports slots committed to more than one user.
type CollisionFinder interface {
	SlotCollisions(ctx context.Context, since time.Time) ([]booking.AuditEntry, error)
}

// AdminConfig wires the admin endpoints. Notifier and Audit are optional.
type AdminConfig struct {
	Followups   FollowupLister
	Slots       SlotLister
	Booker      Booker
	Ledger      ledger.Ledger
	Notifier    BookingNotifier
	Audit       CollisionFinder
	Location    *time.Location
	HorizonDays int
	MaxSlots    int
	Now         func() time.Time
	Logger      *logging.Logger
}

// AdminHandler serves the owner-facing /admin endpoints.
type AdminHandler struct {
	cfg    AdminConfig
	logger *logging.Logger
}

func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	if cfg.Followups == nil || cfg.Slots == nil || cfg.Booker == nil || cfg.Ledger == nil {
		panic("handlers: admin handler requires followups, slots, booker and ledger")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
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
	return &AdminHandler{cfg: cfg, logger: cfg.Logger.Named("admin")}
}

// ListFollowups handles GET /admin/followups.
func (h *AdminHandler) ListFollowups(w http.ResponseWriter, r *http.Request) {
	active := h.cfg.Followups.Active()
	if active == nil {
		active = []followup.TimerInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"followups": active, "count": len(active)})
}

// PreviewSlots handles GET /admin/slots?days=7&max=10.
func (h *AdminHandler) PreviewSlots(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", h.cfg.HorizonDays, maxPreviewDays)
	max := queryInt(r, "max", h.cfg.MaxSlots, maxPreviewResults)

	slots, err := h.cfg.Slots.ListAvailableSlots(r.Context(), h.cfg.Now(), days, max)
	if err != nil {
		h.logger.Warn("slot preview failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, availability.ErrCalendarUnavailable) {
			status = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), status)
		return
	}
	out := availability.Strings(slots)
	writeJSON(w, http.StatusOK, map[string]any{"slots": out, "count": len(out)})
}

// ListCollisions handles GET /admin/collisions?days=30.
func (h *AdminHandler) ListCollisions(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Audit == nil {
		jsonError(w, "booking audit is not configured", http.StatusNotFound)
		return
	}
	days := queryInt(r, "days", 30, 365)
	since := h.cfg.Now().AddDate(0, 0, -days)
	entries, err := h.cfg.Audit.SlotCollisions(r.Context(), since)
	if err != nil {
		h.logger.Error("collision query failed", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []booking.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"collisions": entries, "count": len(entries)})
}

type bookingRequest struct {
	UserID string `json:"user_id"`
	Slot   string `json:"slot"`
	Note   string `json:"note"`
}

// CreateBooking handles POST /admin/bookings: commits a paid session and
// records the conversion.
func (h *AdminHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	userID := messaging.CanonicalPhone(req.UserID)
	if userID == "" {
		jsonError(w, "user_id is required", http.StatusBadRequest)
		return
	}
	slot, ok := availability.ParseSlot(req.Slot, h.cfg.Location)
	if !ok {
		jsonError(w, "slot must use the "+availability.SlotLayout+" layout", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	res, err := h.cfg.Booker.Book(ctx, booking.Request{
		UserID: userID,
		Slot:   slot,
		Free:   false,
		Note:   strings.TrimSpace(req.Note),
	})
	if err != nil {
		h.logger.ForUser(userID).Error("admin booking failed", "slot", slot.String(), "error", err)
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if _, err := h.cfg.Ledger.MarkConverted(ctx, userID, ledger.ReasonBooking); err != nil {
		h.logger.ForUser(userID).Error("mark conversion failed", "error", err)
	}
	if h.cfg.Notifier != nil {
		h.cfg.Notifier.NotifyBooking(ctx, userID, res, req.Note)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":   "ok",
		"event_id": res.EventID,
		"title":    res.Title,
		"start":    res.Start.Format(time.RFC3339),
		"end":      res.End.Format(time.RFC3339),
	})
}

func queryInt(r *http.Request, key string, def, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
