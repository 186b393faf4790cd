package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
	"github.com/wolfman30/wellness-commerce-bot/internal/booking"
)

// MemoryCalendar is an in-process calendar for local development. Inserted
// events become busy intervals for later queries.
type MemoryCalendar struct {
	mu     sync.Mutex
	events []StoredEvent
	seq    int
}

// StoredEvent is an event held by MemoryCalendar.
type StoredEvent struct {
	ID string
	booking.Event
}

func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{}
}

// Block marks [start, end) busy without a title.
func (m *MemoryCalendar) Block(start, end time.Time) {
	_, _ = m.InsertEvent(context.Background(), booking.Event{Title: "busy", Start: start, End: end})
}

func (m *MemoryCalendar) QueryBusy(_ context.Context, min, max time.Time) ([]availability.BusyInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []availability.BusyInterval
	for _, e := range m.events {
		if e.Start.Before(max) && e.End.After(min) {
			out = append(out, availability.BusyInterval{Start: e.Start, End: e.End})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryCalendar) InsertEvent(_ context.Context, event booking.Event) (string, error) {
	if !event.End.After(event.Start) {
		return "", fmt.Errorf("calendar: event end must follow start")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("mem-%d", m.seq)
	m.events = append(m.events, StoredEvent{ID: id, Event: event})
	return id, nil
}

// Events returns a copy of all stored events.
func (m *MemoryCalendar) Events() []StoredEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StoredEvent(nil), m.events...)
}
