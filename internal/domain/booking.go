package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	StatusRequested BookingStatus = "requested"
	StatusConfirmed BookingStatus = "confirmed"
	StatusRejected  BookingStatus = "rejected"
	StatusCancelled BookingStatus = "cancelled"
)

// Only requested and confirmed bookings can move; requested and rejected
// never reach the store.
var transitions = map[BookingStatus][]BookingStatus{
	StatusRequested: {StatusConfirmed, StatusRejected},
	StatusConfirmed: {StatusCancelled},
}

// CanTransition reports whether from -> to is a legal booking state change.
func CanTransition(from, to BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Booking struct {
	ID          string
	HotelID     string
	RoomTypeID  string
	UserID      string
	CheckIn     time.Time // UTC midnight, inclusive
	CheckOut    time.Time // UTC midnight, exclusive
	Status      BookingStatus
	Guests      int
	TotalPrice  float64
	CreatedAt   time.Time
	CancelledAt *time.Time
}

// Nights is the number of whole days in [CheckIn, CheckOut).
func (b Booking) Nights() int { return DaysBetween(b.CheckIn, b.CheckOut) }

// Contains reports whether day falls inside the booking's half-open stay.
func (b Booking) Contains(day time.Time) bool {
	d := Day(day)
	return !d.Before(b.CheckIn) && d.Before(b.CheckOut)
}

const DayLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD calendar date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", ErrValidation, s)
	}
	return t, nil
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween counts calendar days from start to end; negative when end is earlier.
// Unix seconds are used so ranges beyond time.Duration's ~292 years are exact.
func DaysBetween(start, end time.Time) int {
	return int((Day(end).Unix() - Day(start).Unix()) / secondsPerDay)
}
