package availability

import (
	"strings"
	"time"
)

const (
	// SlotDuration is the length of a bookable session.
	SlotDuration = 50 * time.Minute
	// SlotStep is the distance between consecutive candidate starts (session plus a 30 minute break).
	SlotStep = 80 * time.Minute
	// SlotLayout is the user-facing slot identity format.
	SlotLayout = "2006-01-02 15:04"
)

// BusyInterval is a half-open occupied range reported by the calendar.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// Slot is an offerable appointment. Its identity is the start time.
type Slot struct {
	Start time.Time
}

// End returns the slot end (start + 50 minutes).
func (s Slot) End() time.Time {
	return s.Start.Add(SlotDuration)
}

// String formats the slot as YYYY-MM-DD HH:MM.
func (s Slot) String() string {
	return s.Start.Format(SlotLayout)
}

// Overlaps reports whether the slot intersects a busy interval.
func (s Slot) Overlaps(b BusyInterval) bool {
	return s.Start.Before(b.End) && s.End().After(b.Start)
}

// ParseSlot parses user text in the YYYY-MM-DD HH:MM layout.
// A non-matching text is reported through ok, not an error.
func ParseSlot(text string, loc *time.Location) (Slot, bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(SlotLayout, strings.TrimSpace(text), loc)
	if err != nil {
		return Slot{}, false
	}
	return Slot{Start: t}, true
}

// FilterWeekdays keeps only slots whose start falls on one of days, preserving order.
func FilterWeekdays(slots []Slot, days ...time.Weekday) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		for _, d := range days {
			if s.Start.Weekday() == d {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Strings formats each slot.
func Strings(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.String()
	}
	return out
}
