// Package calendar adapts Google Calendar to the availability and booking packages.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
	"github.com/wolfman30/wellness-commerce-bot/pkg/logging"
)

// GoogleCalendar queries free/busy and inserts events on a single calendar.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	tracer     trace.Tracer
	logger     *logging.Logger
}

// NewGoogleCalendar builds the client from API options (token source, endpoint, HTTP client).
func NewGoogleCalendar(ctx context.Context, calendarID string, loc *time.Location, logger *logging.Logger, opts ...option.ClientOption) (*GoogleCalendar, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &GoogleCalendar{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		tracer:     otel.Tracer("wellness.internal.calendar"),
		logger:     logger.Named("calendar"),
	}, nil
}

// QueryBusy returns the calendar's busy intervals overlapping [min, max).
func (g *GoogleCalendar) QueryBusy(ctx context.Context, min, max time.Time) ([]availability.BusyInterval, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.query_busy")
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar.id", g.calendarID),
		attribute.String("calendar.time_min", min.Format(time.RFC3339)),
	)

	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  min.Format(time.RFC3339),
		TimeMax:  max.Format(time.RFC3339),
		TimeZone: g.loc.String(),
		Items:    []*gcal.FreeBusyRequestItem{{Id: g.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("calendar: freebusy query: %w", err)
	}

	cal, ok := resp.Calendars[g.calendarID]
	if !ok {
		err := fmt.Errorf("calendar: freebusy response missing calendar %q", g.calendarID)
		span.RecordError(err)
		return nil, err
	}
	if len(cal.Errors) > 0 {
		err := fmt.Errorf("calendar: freebusy error: %s", cal.Errors[0].Reason)
		span.RecordError(err)
		return nil, err
	}

	busy := make([]availability.BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		interval, err := parsePeriod(period)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		busy = append(busy, interval)
	}
	span.SetAttributes(attribute.Int("calendar.busy_count", len(busy)))
	return busy, nil
}

// InsertEvent creates the event and returns its id.
func (g *GoogleCalendar) InsertEvent(ctx context.Context, event booking.Event) (string, error) {
	ctx, span := g.tracer.Start(ctx, "calendar.insert_event")
	defer span.End()

	created, err := g.svc.Events.Insert(g.calendarID, &gcal.Event{
		Summary:     event.Title,
		Description: event.Description,
		Start: &gcal.EventDateTime{
			DateTime: event.Start.In(g.loc).Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		End: &gcal.EventDateTime{
			DateTime: event.End.In(g.loc).Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
	}).Context(ctx).Do()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("calendar: insert event: %w", err)
	}
	g.logger.Info("calendar: event inserted", "event_id", created.Id, "start", event.Start.Format(time.RFC3339))
	return created.Id, nil
}

var errBadPeriod = errors.New("calendar: malformed busy period")

func parsePeriod(p *gcal.TimePeriod) (availability.BusyInterval, error) {
	if p == nil {
		return availability.BusyInterval{}, errBadPeriod
	}
	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return availability.BusyInterval{}, fmt.Errorf("%w: start %q", errBadPeriod, p.Start)
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return availability.BusyInterval{}, fmt.Errorf("%w: end %q", errBadPeriod, p.End)
	}
	return availability.BusyInterval{Start: start, End: end}, nil
}
