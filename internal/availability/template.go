package availability

import (
	"fmt"
	"time"
)

// DayClass distinguishes the two operating windows.
type DayClass string

const (
	DayClassWeekday DayClass = "weekday"
	DayClassWeekend DayClass = "weekend"
)

// Window is an operating window expressed as offsets from local midnight.
type Window struct {
	Class DayClass
	Start time.Duration
	End   time.Duration
}

var (
	weekdayWindow = Window{Class: DayClassWeekday, Start: 7 * time.Hour, End: 17 * time.Hour}
	sundayWindow  = Window{Class: DayClassWeekend, Start: 9 * time.Hour, End: 13 * time.Hour}
)

// WindowFor returns the operating window for a weekday.
// Monday through Saturday open 07:00-17:00, Sunday 09:00-13:00.
func WindowFor(day time.Weekday) Window {
	if day == time.Sunday {
		return sundayWindow
	}
	return weekdayWindow
}

// On anchors the window to the calendar day containing t, in t's location.
// Edges are wall-clock times, so they hold on days with a DST shift.
func (w Window) On(t time.Time) (start, end time.Time) {
	return wallClock(t, w.Start), wallClock(t, w.End)
}

func wallClock(day time.Time, offset time.Duration) time.Time {
	h, m := int(offset/time.Hour), int(offset%time.Hour/time.Minute)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func (w Window) String() string {
	return fmt.Sprintf("%s %s-%s", w.Class, clock(w.Start), clock(w.End))
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
