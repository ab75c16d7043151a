// Package markethours gates scheduled cycles to an exchange's trading
// session.
package markethours

import (
	"fmt"
	"time"
)

// IST is Indian Standard Time (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

const dateLayout = "2006-01-02"

// Session is one exchange's regular session: weekdays from Open to Close
// (offsets from local midnight), excluding holidays.
type Session struct {
	Location *time.Location
	Open     time.Duration
	Close    time.Duration
	holidays map[string]bool
}

// nseHolidays2026 lists NSE trading holidays; tentative dates follow the
// exchange's provisional calendar.
var nseHolidays2026 = []string{
	"2026-01-26", // Republic Day
	"2026-02-17", // Mahashivratri
	"2026-03-14", // Holi
	"2026-03-31", // Id-ul-Fitr
	"2026-04-02", // Ram Navami
	"2026-04-06", // Mahavir Jayanti
	"2026-04-10", // Good Friday
	"2026-04-14", // Dr. Ambedkar Jayanti
	"2026-05-01", // Maharashtra Day
	"2026-06-07", // Bakri Id
	"2026-07-06", // Muharram
	"2026-08-15", // Independence Day
	"2026-08-16", // Janmashtami
	"2026-09-05", // Milad-un-Nabi
	"2026-10-02", // Gandhi Jayanti
	"2026-10-20", // Dussehra
	"2026-10-21",
	"2026-11-05", // Diwali
	"2026-11-06",
	"2026-11-07",
	"2026-11-19", // Guru Nanak Jayanti
	"2026-12-25", // Christmas
}

// NSE returns the National Stock Exchange session, 9:15 to 15:30 IST.
func NSE() Session {
	s := Session{Location: IST, Open: 9*time.Hour + 15*time.Minute, Close: 15*time.Hour + 30*time.Minute}
	if err := s.AddHolidays(nseHolidays2026...); err != nil {
		panic(err)
	}
	return s
}

// Always returns a session that never closes, for markets that trade
// around the clock.
func Always() Session {
	return Session{}
}

// Named returns the session called name: "nse", or "" / "always".
func Named(name string) (Session, error) {
	switch name {
	case "", "always":
		return Always(), nil
	case "nse":
		return NSE(), nil
	}
	return Session{}, fmt.Errorf("unknown market session %q", name)
}

// AddHolidays adds closed dates in YYYY-MM-DD form.
func (s *Session) AddHolidays(dates ...string) error {
	if s.holidays == nil {
		s.holidays = make(map[string]bool, len(dates))
	}
	for _, d := range dates {
		if _, err := time.Parse(dateLayout, d); err != nil {
			return fmt.Errorf("holiday %q: %w", d, err)
		}
		s.holidays[d] = true
	}
	return nil
}

func (s Session) always() bool { return s.Location == nil }

// IsHoliday reports whether t's local date is a listed holiday.
func (s Session) IsHoliday(t time.Time) bool {
	if s.always() {
		return false
	}
	return s.holidays[t.In(s.Location).Format(dateLayout)]
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday.
func (s Session) IsTradingDay(t time.Time) bool {
	if s.always() {
		return true
	}
	local := t.In(s.Location)
	wd := local.Weekday()
	return wd != time.Saturday && wd != time.Sunday && !s.IsHoliday(local)
}

// IsOpen reports whether t is inside the session, open inclusive.
func (s Session) IsOpen(t time.Time) bool {
	if s.always() {
		return true
	}
	if !s.IsTradingDay(t) {
		return false
	}
	since := s.sinceMidnight(t)
	return since >= s.Open && since < s.Close
}

func (s Session) sinceMidnight(t time.Time) time.Duration {
	local := t.In(s.Location)
	return time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
}

func (s Session) openOn(day time.Time) time.Time {
	y, m, d := day.In(s.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.Location).Add(s.Open)
}

// NextOpen returns the next session open at or after t. Inside the
// session, or for an always-open session, it returns t.
func (s Session) NextOpen(t time.Time) time.Time {
	if s.IsOpen(t) {
		return t
	}
	if open := s.openOn(t); s.IsTradingDay(t) && t.Before(open) {
		return open
	}
	d := t.In(s.Location).AddDate(0, 0, 1)
	for i := 0; i < 30; i++ {
		if s.IsTradingDay(d) {
			return s.openOn(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return s.openOn(d)
}

// Status describes the session state at t for logs.
func (s Session) Status(t time.Time) string {
	if s.always() {
		return "market always open"
	}
	if s.IsOpen(t) {
		y, m, d := t.In(s.Location).Date()
		closeAt := time.Date(y, m, d, 0, 0, 0, 0, s.Location).Add(s.Close)
		return fmt.Sprintf("market open, closes in %s", fmtDur(closeAt.Sub(t)))
	}
	next := s.NextOpen(t).In(s.Location)
	return fmt.Sprintf("market closed, opens %s %s (in %s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
