package timekit

import (
	"testing"
	"time"
)

func TestDayRangeUTC(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 2025-01-15 in Berlin is UTC+1: local midnight is 23:00 UTC the
	// previous day.
	d := time.Date(2025, 1, 15, 10, 30, 0, 0, loc)
	start, end := DayRangeUTC(d, loc)

	wantStart := time.Date(2025, 1, 14, 23, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)
	if !start.Equal(wantStart) {
		t.Fatalf("start: got %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Fatalf("end: got %v, want %v", end, wantEnd)
	}
}

func TestDayRangeUTC_SpansExactlyOneDay(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	d := time.Date(2025, 7, 4, 0, 0, 0, 0, loc)
	start, end := DayRangeUTC(d, loc)
	if got := end.Sub(start); got != 24*time.Hour {
		t.Fatalf("range spans %v, want 24h", got)
	}
}

func TestDayRangeUTC_DSTTransition(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// 2025-03-30 is the spring-forward day in Berlin: only 23 hours long.
	d := time.Date(2025, 3, 30, 12, 0, 0, 0, loc)
	start, end := DayRangeUTC(d, loc)
	if got := end.Sub(start); got != 23*time.Hour {
		t.Fatalf("DST day spans %v, want 23h", got)
	}
}

func TestFormatDT(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("Atlantic/Reykjavik")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	ts := time.Date(2025, 2, 3, 9, 5, 0, 0, time.UTC)
	if got := FormatDT(ts, loc); got != "2025-02-03 09:05" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	cases := []struct {
		minutes float64
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h 0m"},
		{455, "7h 35m"},
		{-10, "0m"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.minutes); got != c.want {
			t.Fatalf("FormatDuration(%v): got %q, want %q", c.minutes, got, c.want)
		}
	}
}
