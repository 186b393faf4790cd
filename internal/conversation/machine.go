package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/internal/keylock"
	"github.com/wolfman30/wellness-commerce-bot/internal/ledger"
	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

// freeOfferScan bounds the slot scan before the Friday/Saturday filter, so the
// filter sees the whole horizon rather than only its first few days.
const freeOfferScan = 64

// SlotLister lists offerable slots.
type SlotLister interface {
	ListAvailableSlots(ctx context.Context, now time.Time, horizonDays, maxResults int) ([]availability.Slot, error)
}

// Booker commits a slot.
type Booker interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
}

// Campaigns schedules and cancels the interest follow-ups.
type Campaigns interface {
	StartInterest(userID string)
	CancelReminder(userID string) bool
}

// Sender delivers a chat message.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// BookingNotifier announces committed bookings to the owner.
type BookingNotifier interface {
	NotifyBooking(ctx context.Context, userID string, res *booking.Result, note string)
}

// MachineConfig wires a Machine.
type MachineConfig struct {
	Slots       SlotLister
	Booker      Booker
	Ledger      ledger.Store
	Pending     PendingStore
	Campaigns   Campaigns
	Sender      Sender
	Responder   Responder
	Catalog     *catalog.Catalog
	Notifier    BookingNotifier
	Locks       *keylock.Locker
	Location    *time.Location
	HorizonDays int
	MaxSlots    int
	Now         func() time.Time
	Metrics     *metrics.BotMetrics
	Logger      *logging.Logger
}

// Machine routes inbound chat messages. Per-user state is read and written
// under the user lock; calendar and transport I/O run after it is released.
type Machine struct {
	cfg    MachineConfig
	logger *logging.Logger
}

func NewMachine(cfg MachineConfig) *Machine {
	switch {
	case cfg.Slots == nil:
		panic("conversation: slot lister required")
	case cfg.Booker == nil:
		panic("conversation: booker required")
	case cfg.Ledger == nil:
		panic("conversation: ledger required")
	case cfg.Pending == nil:
		panic("conversation: pending store required")
	case cfg.Campaigns == nil:
		panic("conversation: campaigns required")
	case cfg.Sender == nil:
		panic("conversation: sender required")
	case cfg.Catalog == nil:
		panic("conversation: catalog required")
	}
	if cfg.Responder == nil {
		cfg.Responder = NewRuleResponder(cfg.Catalog, nil, cfg.Logger)
	}
	if cfg.Locks == nil {
		cfg.Locks = keylock.New()
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
	return &Machine{cfg: cfg, logger: cfg.Logger.Named("conversation")}
}

// step is the outcome of the locked decision phase.
type step struct {
	intent  Intent
	userID  string
	text    string
	slot    availability.Slot
	pending PendingBooking
}

// HandleInbound classifies one message and performs its branch.
func (m *Machine) HandleInbound(ctx context.Context, userID, text string) error {
	st, err := m.decide(ctx, userID, text)
	if err != nil {
		m.logger.ForUser(userID).Error("conversation: state update failed", "error", err)
		return err
	}
	m.cfg.Metrics.ObserveInbound(string(st.intent))
	m.logger.ForUser(userID).Info("conversation: inbound classified", "intent", st.intent)
	return m.execute(ctx, st)
}

func (m *Machine) decide(ctx context.Context, userID, text string) (step, error) {
	unlock := m.cfg.Locks.Lock(userID)
	defer unlock()

	m.cfg.Campaigns.CancelReminder(userID)

	pending, hasPending, err := m.cfg.Pending.Get(ctx, userID)
	if err != nil {
		return step{}, err
	}
	in := NewInput(text, hasPending, m.cfg.Location)
	st := step{
		intent:  Classify(in),
		userID:  userID,
		text:    strings.TrimSpace(text),
		slot:    in.Slot,
		pending: pending,
	}

	switch st.intent {
	case IntentPendingDetail:
		// Taken before the remote write so a duplicate delivery cannot book twice.
		if err := m.cfg.Pending.Delete(ctx, userID); err != nil {
			return step{}, err
		}
	case IntentChooseSlot:
		if err := m.cfg.Pending.Put(ctx, PendingBooking{UserID: userID, SlotStart: st.slot.Start, CreatedAt: m.cfg.Now()}); err != nil {
			return step{}, err
		}
	case IntentTherapyInterest:
		if err := m.cfg.Ledger.MarkInterested(ctx, userID); err != nil {
			m.logger.ForUser(userID).Warn("conversation: mark interest failed", "error", err)
		}
		m.cfg.Campaigns.StartInterest(userID)
	}
	return st, nil
}

func (m *Machine) execute(ctx context.Context, st step) error {
	cat := m.cfg.Catalog
	switch st.intent {
	case IntentPendingDetail:
		return m.commitPending(ctx, st)
	case IntentAcceptFree:
		return m.offerFreeSlots(ctx, st.userID)
	case IntentChooseSlot:
		return m.send(ctx, st.userID, cat.AskCondition(st.slot.String()))
	case IntentTherapyInterest:
		return m.send(ctx, st.userID, cat.TherapyInfo())
	case IntentPurchaseConsent:
		return m.send(ctx, st.userID, cat.PurchaseGuide())
	case IntentMethodInfo:
		return m.send(ctx, st.userID, cat.MethodInfo())
	case IntentCourseInfo:
		return m.send(ctx, st.userID, cat.CourseInfo())
	default:
		return m.send(ctx, st.userID, m.cfg.Responder.Respond(ctx, st.text, st.userID))
	}
}

func (m *Machine) commitPending(ctx context.Context, st step) error {
	logger := m.logger.ForUser(st.userID)
	slot := availability.Slot{Start: st.pending.SlotStart.In(m.cfg.Location)}

	res, err := m.cfg.Booker.Book(ctx, booking.Request{
		UserID: st.userID,
		Slot:   slot,
		Free:   true,
		Note:   st.text,
	})
	if err != nil {
		m.restorePending(ctx, st.pending)
		logger.Warn("conversation: free booking failed, pending slot restored", "slot", slot.String(), "error", err)
		return m.send(ctx, st.userID, m.cfg.Catalog.BookingFailed(slot.String()))
	}

	if _, err := m.cfg.Ledger.MarkConverted(ctx, st.userID, ledger.ReasonFreeBooking); err != nil {
		logger.Error("conversation: mark conversion failed", "error", err)
	}
	if m.cfg.Notifier != nil {
		m.cfg.Notifier.NotifyBooking(ctx, st.userID, res, st.text)
	}
	return m.send(ctx, st.userID, m.cfg.Catalog.BookingConfirmed(slot.String()))
}

// restorePending puts the entry back unless the user picked a new slot meanwhile.
func (m *Machine) restorePending(ctx context.Context, p PendingBooking) {
	unlock := m.cfg.Locks.Lock(p.UserID)
	defer unlock()
	if _, exists, err := m.cfg.Pending.Get(ctx, p.UserID); err == nil && exists {
		return
	}
	if err := m.cfg.Pending.Put(ctx, p); err != nil {
		m.logger.ForUser(p.UserID).Error("conversation: restore pending booking failed", "error", err)
	}
}

func (m *Machine) offerFreeSlots(ctx context.Context, userID string) error {
	slots, err := m.cfg.Slots.ListAvailableSlots(ctx, m.cfg.Now(), m.cfg.HorizonDays, freeOfferScan)
	if err != nil {
		m.logger.ForUser(userID).Warn("conversation: availability lookup failed", "error", err)
		return m.send(ctx, userID, m.cfg.Catalog.CalendarUnavailable())
	}
	free := availability.FilterWeekdays(slots, time.Friday, time.Saturday)
	if len(free) > m.cfg.MaxSlots {
		free = free[:m.cfg.MaxSlots]
	}
	if len(free) == 0 {
		return m.send(ctx, userID, m.cfg.Catalog.NoFreeSlots())
	}
	return m.send(ctx, userID, m.cfg.Catalog.FreeSlots(availability.Strings(free)))
}

func (m *Machine) send(ctx context.Context, userID, body string) error {
	if _, err := m.cfg.Sender.Send(ctx, userID, body); err != nil {
		m.logger.ForUser(userID).Error("conversation: reply failed", "error", err)
		return fmt.Errorf("conversation: reply to %s: %w", userID, err)
	}
	return nil
}
