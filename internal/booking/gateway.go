// Package booking commits chosen slots to the calendar.
//
// The remote calendar is the only arbiter of conflicts: two users picking the
// same slot both succeed. The audit log keeps every attempt so such collisions
// can be found after the fact.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

// ErrBookingFailed wraps every collaborator failure returned by Book.
var ErrBookingFailed = errors.New("booking: failed")

// Event is a calendar event to insert.
type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// EventInserter writes an event and returns its provider id.
type EventInserter interface {
	InsertEvent(ctx context.Context, event Event) (string, error)
}

// Recorder stores booking attempts.
type Recorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// Request describes a booking to commit.
type Request struct {
	UserID string
	Slot   availability.Slot
	Free   bool
	Note   string
}

// Result describes a committed booking.
type Result struct {
	EventID string
	Title   string
	Start   time.Time
	End     time.Time
	Free    bool
}

// Gateway books slots on the calendar. It never retries.
type Gateway struct {
	calendar EventInserter
	audit    Recorder
	metrics  *metrics.BotMetrics
	logger   *logging.Logger
}

// NewGateway creates a booking gateway. audit may be nil.
func NewGateway(calendar EventInserter, audit Recorder, m *metrics.BotMetrics, logger *logging.Logger) *Gateway {
	if calendar == nil {
		panic("booking: calendar required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{calendar: calendar, audit: audit, metrics: m, logger: logger.Named("booking")}
}

// Title builds the event title tagging free or paid sessions.
func Title(userID string, free bool) string {
	if free {
		return "Cita Terapia (GRATIS) - " + userID
	}
	return "Cita Terapia - " + userID
}

// Book inserts one event spanning the slot. Collaborator errors are returned
// wrapped in ErrBookingFailed.
func (g *Gateway) Book(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" || req.Slot.Start.IsZero() {
		return nil, fmt.Errorf("%w: user and slot required", ErrBookingFailed)
	}

	event := Event{
		Title:       Title(req.UserID, req.Free),
		Description: req.Note,
		Start:       req.Slot.Start,
		End:         req.Slot.End(),
	}

	eventID, err := g.calendar.InsertEvent(ctx, event)
	entry := AuditEntry{
		UserID:   req.UserID,
		SlotTime: req.Slot.Start,
		Free:     req.Free,
		Note:     req.Note,
		EventID:  eventID,
		Status:   AuditStatusCommitted,
	}
	if err != nil {
		entry.Status = AuditStatusFailed
		entry.Error = err.Error()
	}
	g.record(ctx, entry)

	if err != nil {
		g.metrics.ObserveBooking(req.Free, "failed")
		g.logger.Error("booking: insert event failed",
			"user_id", req.UserID,
			"slot", req.Slot.String(),
			"free", req.Free,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %v", ErrBookingFailed, err)
	}

	g.metrics.ObserveBooking(req.Free, "committed")
	g.logger.Info("booking: committed",
		"user_id", req.UserID,
		"slot", req.Slot.String(),
		"free", req.Free,
		"event_id", eventID,
	)
	return &Result{EventID: eventID, Title: event.Title, Start: event.Start, End: event.End, Free: req.Free}, nil
}

func (g *Gateway) record(ctx context.Context, entry AuditEntry) {
	if g.audit == nil {
		return
	}
	if err := g.audit.Record(ctx, entry); err != nil {
		g.logger.Warn("booking: audit write failed", "user_id", entry.UserID, "error", err)
	}
}
