package domain_test

import (
	"testing"
	"time"

	"stayfinder/internal/domain"
)

func TestDaysBetween(t *testing.T) {
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }
	cases := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{"same day", d(2030, 1, 1), d(2030, 1, 1), 0},
		{"one night", d(2030, 1, 1), d(2030, 1, 2), 1},
		{"leap february", d(2032, 2, 28), d(2032, 3, 1), 2},
		{"reversed", d(2030, 1, 5), d(2030, 1, 1), -4},
		{"time of day ignored", time.Date(2030, 1, 1, 23, 59, 0, 0, time.UTC), time.Date(2030, 1, 2, 0, 1, 0, 0, time.UTC), 1},
		// beyond the ~292 year span a time.Duration can hold
		{"five centuries", d(2030, 1, 10), d(2500, 1, 1), 171655},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := domain.DaysBetween(tc.start, tc.end); got != tc.want {
				t.Fatalf("DaysBetween = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBookingNights_LongStay(t *testing.T) {
	b := domain.Booking{
		CheckIn:  time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if got := b.Nights(); got != 171655 {
		t.Fatalf("Nights = %d, want 171655", got)
	}
}
