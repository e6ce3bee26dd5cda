// Package markethours implements the configurable trading-day/trading-window
// predicate the scheduler gates its ingest/compute ticks on.
package markethours

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dayCodes = map[string]time.Weekday{
	"SUN": time.Sunday, "MON": time.Monday, "TUE": time.Tuesday,
	"WED": time.Wednesday, "THU": time.Thursday, "FRI": time.Friday, "SAT": time.Saturday,
}

// Calendar is the market-hours gate: a timezone, a trading-day set, an
// open/close window, an after-hours override and a holiday calendar.
type Calendar struct {
	Loc             *time.Location
	Days            map[time.Weekday]bool
	OpenMin         int // minutes since midnight
	CloseMin        int
	AllowAfterHours bool
	Holidays        map[string]bool
}

// NewCalendar builds a Calendar from the scanner's MARKET_* configuration.
// tz must be an IANA zone name; openTime/closeTime are "HH:MM"; days is a
// list of 3-letter codes (MON, TUE, ...).
func NewCalendar(tz, openTime, closeTime string, days []string, allowAfterHours bool, holidays map[string]bool) (*Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("markethours: load location %q: %w", tz, err)
	}
	openMin, err := parseHHMM(openTime)
	if err != nil {
		return nil, fmt.Errorf("markethours: open time: %w", err)
	}
	closeMin, err := parseHHMM(closeTime)
	if err != nil {
		return nil, fmt.Errorf("markethours: close time: %w", err)
	}
	daySet := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		wd, ok := dayCodes[strings.ToUpper(strings.TrimSpace(d))]
		if !ok {
			return nil, fmt.Errorf("markethours: unknown day code %q", d)
		}
		daySet[wd] = true
	}
	if holidays == nil {
		holidays = map[string]bool{}
	}
	return &Calendar{
		Loc: loc, Days: daySet, OpenMin: openMin, CloseMin: closeMin,
		AllowAfterHours: allowAfterHours, Holidays: holidays,
	}, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}

// IsOpen reports whether t falls inside the trading window: allowed day,
// not a holiday, local time in [open, close]. When AllowAfterHours is set
// it always returns true (the gate is disabled).
func (c *Calendar) IsOpen(t time.Time) bool {
	if c.AllowAfterHours {
		return true
	}
	local := t.In(c.Loc)
	if !c.IsTradingDay(local) {
		return false
	}
	hm := local.Hour()*60 + local.Minute()
	return hm >= c.OpenMin && hm <= c.CloseMin
}

// IsTradingDay reports whether t's local date is an allowed weekday and not
// a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.Loc)
	if !c.Days[local.Weekday()] {
		return false
	}
	return !c.IsHoliday(local)
}

// IsHoliday reports whether t's local date is in the holiday calendar.
func (c *Calendar) IsHoliday(t time.Time) bool {
	local := t.In(c.Loc)
	return c.Holidays[dateKey(local)]
}

// NextOpen returns the next open instant at or after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.Loc)
	todayOpen := time.Date(local.Year(), local.Month(), local.Day(), c.OpenMin/60, c.OpenMin%60, 0, 0, c.Loc)
	if !local.After(todayOpen) && c.IsTradingDay(local) {
		return todayOpen
	}
	d := local.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ {
		if c.IsTradingDay(d) {
			return time.Date(d.Year(), d.Month(), d.Day(), c.OpenMin/60, c.OpenMin%60, 0, 0, c.Loc)
		}
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(local.Year(), local.Month(), local.Day()+1, c.OpenMin/60, c.OpenMin%60, 0, 0, c.Loc)
}

// TodayClose returns today's close instant in the calendar's timezone.
func (c *Calendar) TodayClose(t time.Time) time.Time {
	local := t.In(c.Loc)
	return time.Date(local.Year(), local.Month(), local.Day(), c.CloseMin/60, c.CloseMin%60, 0, 0, c.Loc)
}

// TimeUntilClose returns the duration until today's close, or 0 if past it.
func (c *Calendar) TimeUntilClose(t time.Time) time.Duration {
	d := c.TodayClose(t).Sub(t.In(c.Loc))
	if d < 0 {
		return 0
	}
	return d
}

// TimeUntilOpen returns the duration until the next open.
func (c *Calendar) TimeUntilOpen(t time.Time) time.Duration {
	return c.NextOpen(t).Sub(t.In(c.Loc))
}

// StatusString returns a human-readable market status.
func (c *Calendar) StatusString(t time.Time) string {
	if c.IsOpen(t) {
		return fmt.Sprintf("market open, closes in %s", fmtDur(c.TimeUntilClose(t)))
	}
	next := c.NextOpen(t)
	return fmt.Sprintf("market closed, opens %s %s (in %s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(c.TimeUntilOpen(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
