package scheduling

import (
	"fmt"
	"time"
)

// SlotLength is the booking grid.
const SlotLength = 30 * time.Minute

const (
	slotMinutes = int(SlotLength / time.Minute)
	dateLayout  = "2006-01-02"
)

// Weekday uses the ISO convention, Monday = 1 … Sunday = 7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

func (w Weekday) String() string {
	if !w.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(w))
	}
	if w == Sunday {
		return time.Sunday.String()
	}
	return time.Weekday(w).String()
}

// WeekdayOf returns the ISO weekday of a calendar date.
func WeekdayOf(date time.Time) Weekday {
	wd := date.Weekday()
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(wd)
}

// Clock is a time of day in minutes since midnight.
type Clock int

// NewClock returns hh:mm. It does not validate.
func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ParseClock accepts "15:04" or "15:04:05" (seconds must be zero).
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Second() != 0 {
			return 0, fmt.Errorf("time %q has a seconds component", s)
		}
		return NewClock(t.Hour(), t.Minute()), nil
	}
	return 0, fmt.Errorf("time %q is not HH:MM", s)
}

func (c Clock) Valid() bool   { return c >= 0 && c < 24*60 }
func (c Clock) Hour() int     { return int(c) / 60 }
func (c Clock) Minute() int   { return int(c) % 60 }
func (c Clock) Aligned() bool { return c.Minute()%slotMinutes == 0 }

// Add moves c by d, truncated to whole minutes.
func (c Clock) Add(d time.Duration) Clock { return c + Clock(d/time.Minute) }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// Duration is the offset of c from midnight.
func (c Clock) Duration() time.Duration { return time.Duration(c) * time.Minute }

// Date returns the calendar day of t in loc, as midnight UTC.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

func FormatDate(d time.Time) string { return d.Format(dateLayout) }

// At combines a calendar day and a time of day in loc.
func At(date time.Time, c Clock, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}
