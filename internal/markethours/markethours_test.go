package markethours

import (
	"testing"
	"time"
)

func testCalendar(t *testing.T, allowAfterHours bool) *Calendar {
	t.Helper()
	c, err := NewCalendar("Asia/Kolkata", "09:15", "15:30",
		[]string{"MON", "TUE", "WED", "THU", "FRI"}, allowAfterHours, nil)
	if err != nil {
		t.Fatalf("NewCalendar: %v", err)
	}
	return c
}

func TestIsOpenDuringWindow(t *testing.T) {
	c := testCalendar(t, false)
	loc, _ := time.LoadLocation("Asia/Kolkata")
	open := time.Date(2026, time.July, 30, 10, 0, 0, 0, loc) // Thursday
	if !c.IsOpen(open) {
		t.Fatalf("expected market open at 10:00 IST on a trading day")
	}
}

func TestIsClosedOnWeekend(t *testing.T) {
	c := testCalendar(t, false)
	loc, _ := time.LoadLocation("Asia/Kolkata")
	sat := time.Date(2026, time.August, 1, 10, 0, 0, 0, loc) // Saturday
	if c.IsOpen(sat) {
		t.Fatalf("expected market closed on Saturday")
	}
}

func TestIsClosedOutsideWindow(t *testing.T) {
	c := testCalendar(t, false)
	loc, _ := time.LoadLocation("Asia/Kolkata")
	early := time.Date(2026, time.July, 30, 8, 0, 0, 0, loc)
	if c.IsOpen(early) {
		t.Fatalf("expected market closed before 09:15 IST")
	}
}

func TestAllowAfterHoursOverride(t *testing.T) {
	c := testCalendar(t, true)
	loc, _ := time.LoadLocation("Asia/Kolkata")
	midnight := time.Date(2026, time.August, 1, 0, 0, 0, 0, loc) // Saturday midnight
	if !c.IsOpen(midnight) {
		t.Fatalf("expected allow_after_hours to disable the gate entirely")
	}
}

func TestHolidayClosesMarket(t *testing.T) {
	holidays := DefaultHolidays()
	c, err := NewCalendar("Asia/Kolkata", "09:15", "15:30",
		[]string{"MON", "TUE", "WED", "THU", "FRI"}, false, holidays)
	if err != nil {
		t.Fatalf("NewCalendar: %v", err)
	}
	loc, _ := time.LoadLocation("Asia/Kolkata")
	gandhiJayanti := time.Date(2026, time.October, 2, 10, 0, 0, 0, loc) // a Friday
	if c.IsOpen(gandhiJayanti) {
		t.Fatalf("expected market closed on a holiday")
	}
}
