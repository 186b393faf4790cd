package followup

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/catalog"
	"github.com/wolfman30/wellness-commerce-bot/internal/keylock"
	"github.com/wolfman30/wellness-commerce-bot/internal/ledger"
	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const sendTimeout = 30 * time.Second

// Sender delivers a chat message.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Delays configures when each campaign task fires.
type Delays struct {
	Reminder     time.Duration
	NoConversion time.Duration
	Day6         time.Duration
	// Day7 is measured from the moment the day-6 task fires.
	Day7 time.Duration
}

// DefaultDelays places day 7 one day after day 6.
func DefaultDelays() Delays {
	return Delays{
		Reminder:     time.Hour,
		NoConversion: 24 * time.Hour,
		Day6:         6 * 24 * time.Hour,
		Day7:         24 * time.Hour,
	}
}

type userKind struct {
	user string
	kind Kind
}

// Campaigns owns the conversion-gated follow-up tasks. Each task takes the user
// lock and re-reads the ledger when it fires, never when it is scheduled.
type Campaigns struct {
	scheduler *Scheduler
	ledger    ledger.Ledger
	interest  ledger.InterestSet
	locks     *keylock.Locker
	sender    Sender
	catalog   *catalog.Catalog
	delays    Delays
	metrics   *metrics.BotMetrics
	logger    *logging.Logger

	mu      sync.Mutex
	handles map[userKind]Handle
}

// CampaignsConfig wires a Campaigns.
type CampaignsConfig struct {
	Scheduler *Scheduler
	Ledger    ledger.Ledger
	// Interest, when set, gates the no-conversion offer on the PendingUser set.
	Interest ledger.InterestSet
	Locks     *keylock.Locker
	Sender    Sender
	Catalog   *catalog.Catalog
	Delays    Delays
	Metrics   *metrics.BotMetrics
	Logger    *logging.Logger
}

func NewCampaigns(cfg CampaignsConfig) *Campaigns {
	if cfg.Scheduler == nil {
		panic("followup: scheduler required")
	}
	if cfg.Ledger == nil {
		panic("followup: ledger required")
	}
	if cfg.Sender == nil {
		panic("followup: sender required")
	}
	if cfg.Catalog == nil {
		panic("followup: catalog required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Locks == nil {
		cfg.Locks = keylock.New()
	}
	if cfg.Delays == (Delays{}) {
		cfg.Delays = DefaultDelays()
	}
	return &Campaigns{
		scheduler: cfg.Scheduler,
		ledger:    cfg.Ledger,
		interest:  cfg.Interest,
		locks:     cfg.Locks,
		sender:    cfg.Sender,
		catalog:   cfg.Catalog,
		delays:    cfg.Delays,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.Named("campaigns"),
		handles:   make(map[userKind]Handle),
	}
}

// StartInterest replaces the user's +1h reminder and, unless one is already
// pending, schedules the no-conversion offer.
func (c *Campaigns) StartInterest(userID string) {
	c.replace(userID, KindReminder, c.delays.Reminder, c.catalog.Reminder)

	c.mu.Lock()
	existing, ok := c.handles[userKind{userID, KindNoConversion}]
	c.mu.Unlock()
	if ok && c.scheduler.Pending(existing) {
		return
	}
	c.replace(userID, KindNoConversion, c.delays.NoConversion, c.catalog.NoConversion)
}

// CancelReminder drops a pending +1h reminder. It reports whether one was pending.
func (c *Campaigns) CancelReminder(userID string) bool {
	key := userKind{userID, KindReminder}
	c.mu.Lock()
	h, ok := c.handles[key]
	delete(c.handles, key)
	c.mu.Unlock()
	if !ok {
		return false
	}
	cancelled := c.scheduler.Cancel(h)
	if cancelled {
		c.metrics.ObserveFollowup(string(KindReminder), "cancelled")
	}
	return cancelled
}

// StartEbook schedules the day-6 nudge, which chains the day-7 nudge.
func (c *Campaigns) StartEbook(userID string) {
	c.replace(userID, KindDay6, c.delays.Day6, c.catalog.Day6)
}

// Active lists pending campaign tasks.
func (c *Campaigns) Active() []TimerInfo {
	return c.scheduler.ListActive()
}

func (c *Campaigns) replace(userID string, kind Kind, delay time.Duration, body func() string) {
	key := userKind{userID, kind}

	// c.mu is held until h is recorded; the task body reads h only under c.mu.
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.handles[key]; ok {
		c.scheduler.Cancel(prev)
		delete(c.handles, key)
	}

	var h Handle
	h = c.scheduler.Schedule(userID, kind, delay, func() {
		c.mu.Lock()
		if cur, ok := c.handles[key]; ok && cur.ID == h.ID {
			delete(c.handles, key)
		}
		c.mu.Unlock()
		c.run(userID, kind, body)
	})
	if !h.IsZero() {
		c.handles[key] = h
	}
}

// run is the fire-time body shared by every campaign task.
func (c *Campaigns) run(userID string, kind Kind, body func() string) {
	logger := c.logger.ForUser(userID)
	unlock := c.locks.Lock(userID)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if c.closed(ctx, userID, kind) {
		return
	}

	if _, err := c.sender.Send(ctx, userID, body()); err != nil {
		c.metrics.ObserveFollowup(string(kind), "send_failed")
		logger.Error("followup: send failed", "kind", kind, "error", err)
	} else {
		c.metrics.ObserveFollowup(string(kind), "sent")
		logger.Info("followup: sent", "kind", kind)
	}

	if kind == KindDay6 {
		c.replace(userID, KindDay7, c.delays.Day7, c.catalog.Day7)
	}
}

// closed runs the fire-time gate. The e-book order counts as a conversion for
// every task except the upsell it starts.
func (c *Campaigns) closed(ctx context.Context, userID string, kind Kind) bool {
	logger := c.logger.ForUser(userID)

	reason, converted, err := c.ledger.ConversionReason(ctx, userID)
	if err != nil {
		// A failed gate costs at most one extra message.
		logger.Warn("followup: ledger check failed, sending anyway", "kind", kind, "error", err)
	}
	if converted && reason == ledger.ReasonEbook && (kind == KindDay6 || kind == KindDay7) {
		converted = false
	}
	if converted {
		c.metrics.ObserveFollowup(string(kind), "skipped_converted")
		logger.Info("followup: user converted, task skipped", "kind", kind, "reason", reason)
		return true
	}

	if kind == KindNoConversion && c.interest != nil {
		interested, err := c.interest.IsInterested(ctx, userID)
		if err != nil {
			logger.Warn("followup: interest check failed, sending anyway", "kind", kind, "error", err)
		} else if !interested {
			c.metrics.ObserveFollowup(string(kind), "skipped_not_interested")
			logger.Info("followup: user not in pending set, task skipped", "kind", kind)
			return true
		}
	}
	return false
}
