package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/wellness-commerce-bot/internal/observability/metrics"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

const (
	DefaultHorizonDays = 7
	DefaultMaxResults  = 10
)

// ErrCalendarUnavailable is returned when every day in the horizon failed to load.
var ErrCalendarUnavailable = errors.New("availability: calendar unavailable")

// BusySource returns the busy intervals overlapping [min, max).
type BusySource interface {
	QueryBusy(ctx context.Context, min, max time.Time) ([]BusyInterval, error)
}

// Engine derives offerable slots from the weekly template and remote free/busy data.
type Engine struct {
	source  BusySource
	loc     *time.Location
	logger  *logging.Logger
	metrics *metrics.BotMetrics
	tracer  trace.Tracer
}

// NewEngine creates an availability engine. Days are resolved in loc.
func NewEngine(source BusySource, loc *time.Location, logger *logging.Logger, m *metrics.BotMetrics) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		source:  source,
		loc:     loc,
		logger:  logger.Named("availability"),
		metrics: m,
		tracer:  otel.Tracer("wellness.internal.availability"),
	}
}

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// ListAvailableSlots walks horizonDays calendar days starting at the midnight of now
// and returns at most maxResults free slots in chronological order.
//
// Busy data is fetched once per day. A day whose query fails is skipped as a whole
// and logged; the walk continues with the next day. If every queried day fails the
// call returns ErrCalendarUnavailable.
func (e *Engine) ListAvailableSlots(ctx context.Context, now time.Time, horizonDays, maxResults int) ([]Slot, error) {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	ctx, span := e.tracer.Start(ctx, "availability.list_slots", trace.WithAttributes(
		attribute.Int("horizon_days", horizonDays),
		attribute.Int("max_results", maxResults),
	))
	defer span.End()

	local := now.In(e.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.loc)

	slots := make([]Slot, 0, maxResults)
	queried, failed := 0, 0
	var lastErr error

	for i := 0; i < horizonDays && len(slots) < maxResults; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		window := WindowFor(day.Weekday())
		start, end := window.On(day)

		queried++
		busy, err := e.source.QueryBusy(ctx, start, end)
		if err != nil {
			failed++
			lastErr = err
			e.metrics.ObserveCalendarDayFailure()
			e.logger.Warn("availability: skipping day, free/busy query failed",
				"day", day.Format(time.DateOnly),
				"error", err,
			)
			day = day.AddDate(0, 0, 1)
			continue
		}

		slots = append(slots, candidates(start, end, busy)...)
		day = day.AddDate(0, 0, 1)
	}

	span.SetAttributes(attribute.Int("days_queried", queried), attribute.Int("days_failed", failed))
	if queried > 0 && failed == queried {
		err := fmt.Errorf("%w: %v", ErrCalendarUnavailable, lastErr)
		span.RecordError(err)
		span.SetStatus(codes.Error, "calendar unavailable")
		return nil, err
	}
	if len(slots) > maxResults {
		slots = slots[:maxResults]
	}
	span.SetAttributes(attribute.Int("slots", len(slots)))
	return slots, nil
}

// candidates generates the free slots of one window, stepping by SlotStep while a
// full session still fits before end.
func candidates(start, end time.Time, busy []BusyInterval) []Slot {
	var out []Slot
	for cursor := start; !cursor.Add(SlotDuration).After(end); cursor = cursor.Add(SlotStep) {
		slot := Slot{Start: cursor}
		if !overlapsAny(slot, busy) {
			out = append(out, slot)
		}
	}
	return out
}

func overlapsAny(slot Slot, busy []BusyInterval) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}
