package market

import (
	"fmt"
	"time"
)

// Hours is a regular weekday trading session in an exchange time zone.
type Hours struct {
	loc   *time.Location
	open  time.Duration
	close time.Duration
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// NewHours builds a session such as ("America/New_York", "09:30", "16:00").
func NewHours(tz, open, close string) (*Hours, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	o, err := ParseClock(open)
	if err != nil {
		return nil, err
	}
	c, err := ParseClock(close)
	if err != nil {
		return nil, err
	}
	if c <= o {
		return nil, fmt.Errorf("close %s must be after open %s", close, open)
	}
	return &Hours{loc: loc, open: o, close: c}, nil
}

func (h *Hours) Location() *time.Location {
	return h.loc
}

// StartOfDay returns midnight of t's date in the exchange time zone.
func (h *Hours) StartOfDay(t time.Time) time.Time {
	lt := t.In(h.loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, h.loc)
}

// IsOpen reports whether t falls inside a weekday session.
func (h *Hours) IsOpen(t time.Time) bool {
	lt := t.In(h.loc)
	if lt.Weekday() == time.Saturday || lt.Weekday() == time.Sunday {
		return false
	}
	c := clock(lt)
	return c >= h.open && c < h.close
}

// MinutesToClose is zero outside the session.
func (h *Hours) MinutesToClose(t time.Time) int {
	if !h.IsOpen(t) {
		return 0
	}
	return int((h.close - clock(t.In(h.loc))) / time.Minute)
}

// AfterClose reports whether t is a weekday past the closing time.
func (h *Hours) AfterClose(t time.Time) bool {
	lt := t.In(h.loc)
	if lt.Weekday() == time.Saturday || lt.Weekday() == time.Sunday {
		return false
	}
	return clock(lt) >= h.close
}

// clock is the wall-clock offset from midnight, independent of DST shifts.
func clock(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
