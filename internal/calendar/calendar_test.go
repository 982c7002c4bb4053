package calendar

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/model"
)

var ny = LoadLocation(DefaultTimezone)

func bars(dates ...string) []model.PriceBar {
	out := make([]model.PriceBar, 0, len(dates))
	for _, d := range dates {
		t, err := time.ParseInLocation("2006-01-02", d, ny)
		if err != nil {
			panic(err)
		}
		out = append(out, model.PriceBar{Date: t, Close: 100, Volume: 1e6})
	}
	return out
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, ny)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolve_EveningSessionToday(t *testing.T) {
	r := NewResolver(ny, "16:00")
	// Thursday 2026-01-29
	s := r.Resolve(bars("2026-01-26", "2026-01-27", "2026-01-28", "2026-01-29"), nil, "Evening", at("2026-01-29 18:00"))

	assert.True(t, s.Proceed)
	assert.Equal(t, time.Date(2026, 1, 28, 21, 0, 0, 0, time.UTC), s.SearchStart)
	assert.True(t, s.TradingDates.Contains(at("2026-01-28 10:00")))
	assert.False(t, s.TradingDates.Contains(at("2026-01-25 10:00")))
}

func TestResolve_WeekendDoesNotProceed(t *testing.T) {
	r := NewResolver(ny, "16:00")
	s := r.Resolve(bars("2026-01-29", "2026-01-30"), nil, "Evening", at("2026-01-31 18:00"))

	assert.False(t, s.Proceed)
	assert.Contains(t, s.Reason, "2026-01-30")
	assert.Equal(t, time.Date(2026, 1, 30, 21, 0, 0, 0, time.UTC), s.SearchStart)
}

func TestResolve_MorningWeekdayProceedsOptimistically(t *testing.T) {
	r := NewResolver(ny, "16:00")
	s := r.Resolve(bars("2026-01-28", "2026-01-29"), nil, "Morning", at("2026-01-30 08:00"))

	assert.True(t, s.Proceed)
	assert.Equal(t, time.Date(2026, 1, 29, 21, 0, 0, 0, time.UTC), s.SearchStart)
}

func TestResolve_MorningWeekendDoesNotProceed(t *testing.T) {
	r := NewResolver(ny, "16:00")
	s := r.Resolve(bars("2026-01-29", "2026-01-30"), nil, "morning", at("2026-02-01 08:00"))

	assert.False(t, s.Proceed)
}

func TestResolve_HolidayMonday(t *testing.T) {
	r := NewResolver(ny, "16:00")
	// Presidents' Day 2026-02-16; the last session is the prior Friday.
	s := r.Resolve(bars("2026-02-12", "2026-02-13"), nil, "Evening", at("2026-02-16 18:00"))

	assert.False(t, s.Proceed)
	assert.Equal(t, time.Date(2026, 2, 13, 21, 0, 0, 0, time.UTC), s.SearchStart)
}

func TestResolve_DaylightSavingClose(t *testing.T) {
	r := NewResolver(ny, "16:00")
	s := r.Resolve(bars("2026-07-14", "2026-07-15"), nil, "Evening", at("2026-07-15 17:00"))

	require.True(t, s.Proceed)
	assert.Equal(t, time.Date(2026, 7, 14, 20, 0, 0, 0, time.UTC), s.SearchStart)
}

func TestResolve_FetchErrorFallsBack(t *testing.T) {
	r := NewResolver(ny, "16:00")
	now := at("2026-01-29 18:00")

	s := r.Resolve(nil, errors.New("timeout"), "Evening", now)
	assert.True(t, s.Proceed)
	assert.Nil(t, s.TradingDates)
	assert.Equal(t, now.Add(-48*time.Hour).UTC(), s.SearchStart)
	assert.Contains(t, s.Reason, "timeout")

	s = r.Resolve([]model.PriceBar{}, nil, "Evening", now)
	assert.True(t, s.Proceed)
	assert.Nil(t, s.TradingDates)
}

func TestResolve_SingleBarUsesDefaultWindow(t *testing.T) {
	r := NewResolver(ny, "16:00")
	now := at("2026-01-29 18:00")

	s := r.Resolve(bars("2026-01-29"), nil, "Evening", now)
	assert.True(t, s.Proceed)
	assert.Equal(t, now.Add(-DefaultWindow).UTC(), s.SearchStart)
	assert.Len(t, s.TradingDates, 1)
}

func TestNewResolver_MalformedCloseTime(t *testing.T) {
	r := NewResolver(ny, "four pm")
	s := r.Resolve(bars("2026-01-28", "2026-01-29"), nil, "Evening", at("2026-01-29 18:00"))
	assert.Equal(t, time.Date(2026, 1, 28, 21, 0, 0, 0, time.UTC), s.SearchStart)

	r = NewResolver(ny, "17:30")
	s = r.Resolve(bars("2026-01-28", "2026-01-29"), nil, "Evening", at("2026-01-29 18:00"))
	assert.Equal(t, time.Date(2026, 1, 28, 22, 30, 0, 0, time.UTC), s.SearchStart)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m, s int
		wantErr bool
	}{
		{"09:30", 9, 30, 0, false},
		{"16:00:59", 16, 0, 59, false},
		{" 7:05 ", 7, 5, 0, false},
		{"24:00", 0, 0, 0, true},
		{"9", 0, 0, 0, true},
		{"aa:bb", 0, 0, 0, true},
		{"", 0, 0, 0, true},
	}
	for _, tt := range tests {
		h, m, s, err := ParseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, []int{tt.h, tt.m, tt.s}, []int{h, m, s}, tt.in)
	}
}

func TestLoadLocation_Fallback(t *testing.T) {
	loc := LoadLocation("Not/AZone")
	_, offset := time.Date(2026, 1, 1, 12, 0, 0, 0, loc).Zone()
	assert.Equal(t, -5*60*60, offset)
}
