package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

const (
	DefaultTimezone  = "America/New_York"
	DefaultCloseTime = "16:00"
	// DefaultWindow is how far back PRs are searched when the prior session is unknown.
	DefaultWindow = 48 * time.Hour

	dateLayout = "2006-01-02"
)

// LoadLocation loads the named zone, falling back to a fixed UTC-5 offset
// when tzdata is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// ParseClock parses "HH:MM" (or "HH:MM:SS") into hours, minutes and seconds.
func ParseClock(s string) (h, m, sec int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("invalid clock time %q", s)
	}
	vals := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, 0, 0, fmt.Errorf("invalid clock time %q", s)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

// TradingDates is the set of exchange-local dates the market was open.
// A nil set means the calendar is unknown.
type TradingDates map[string]struct{}

// Contains reports whether the calendar date of t (in t's own location) is a trading date.
func (d TradingDates) Contains(t time.Time) bool {
	_, ok := d[t.Format(dateLayout)]
	return ok
}

// Session is the outcome of resolving the current market session.
type Session struct {
	SearchStart  time.Time // UTC
	TradingDates TradingDates
	Proceed      bool
	Reason       string
}

// Resolver derives the PR search window and whether a scan should run from a
// reference instrument's daily history.
type Resolver struct {
	loc       *time.Location
	closeHour int
	closeMin  int
}

// NewResolver creates a Resolver. A malformed closeTime falls back to 16:00.
func NewResolver(loc *time.Location, closeTime string) *Resolver {
	if loc == nil {
		loc = LoadLocation(DefaultTimezone)
	}
	h, m, _, err := ParseClock(closeTime)
	if err != nil {
		h, m = 16, 0
	}
	return &Resolver{loc: loc, closeHour: h, closeMin: m}
}

// Location returns the exchange timezone.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve inspects the reference bars (dates are read in their own location)
// and never fails: a fetch error or empty series yields the default window,
// an unknown calendar and Proceed=true.
func (r *Resolver) Resolve(reference []model.PriceBar, fetchErr error, runLabel string, now time.Time) Session {
	fallback := now.Add(-DefaultWindow).UTC()
	if fetchErr != nil || len(reference) == 0 {
		reason := "reference series empty, assuming market open"
		if fetchErr != nil {
			reason = fmt.Sprintf("reference fetch failed (%v), assuming market open", fetchErr)
		}
		return Session{SearchStart: fallback, Proceed: true, Reason: reason}
	}

	dates := make(TradingDates, len(reference))
	for _, b := range reference {
		dates[b.Date.Format(dateLayout)] = struct{}{}
	}

	localNow := now.In(r.loc)
	today := localNow.Format(dateLayout)
	last := reference[len(reference)-1].Date.Format(dateLayout)

	s := Session{SearchStart: fallback, TradingDates: dates}
	switch {
	case last >= today:
		s.Proceed = true
		s.Reason = "market open today"
	case strings.EqualFold(runLabel, "Morning") && isWeekday(localNow):
		s.Proceed = true
		s.Reason = fmt.Sprintf("morning run, no data for %s yet (last session %s)", today, last)
	default:
		s.Reason = fmt.Sprintf("market closed today (last session %s)", last)
	}

	if len(reference) < 2 {
		return s
	}
	for i := len(reference) - 1; i >= 0; i-- {
		d := reference[i].Date
		if d.Format(dateLayout) < today {
			s.SearchStart = time.Date(d.Year(), d.Month(), d.Day(), r.closeHour, r.closeMin, 0, 0, r.loc).UTC()
			break
		}
	}
	return s
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsWeekday reports whether t falls Monday through Friday in loc.
func IsWeekday(t time.Time, loc *time.Location) bool {
	return isWeekday(t.In(loc))
}
