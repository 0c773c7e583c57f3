package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

// AvailabilityEngine answers per-day occupancy questions for a room type.
// Reads are not serialized with writes; the booking path re-validates.
type AvailabilityEngine struct {
	store   domain.InventoryStore
	timeout time.Duration
}

func NewAvailabilityEngine(s domain.InventoryStore, storeTimeout time.Duration) *AvailabilityEngine {
	return &AvailabilityEngine{store: s, timeout: storeTimeout}
}

type DayAvailability struct {
	Date       time.Time
	Booked     int
	Available  int
	TotalRooms int
	Price      float64
}

type AvailabilityReport struct {
	HotelID      string
	RoomTypeID   string
	RoomTypeName string
	Start, End   time.Time
	Days         []DayAvailability
}

// MinAvailable is the number of rooms free on every night of the report.
func (r AvailabilityReport) MinAvailable() int {
	if len(r.Days) == 0 {
		return 0
	}
	min := r.Days[0].Available
	for _, d := range r.Days[1:] {
		if d.Available < min {
			min = d.Available
		}
	}
	return min
}

// Overlaps is the one overlap test for half-open stays [aIn, aOut) and [bIn, bOut).
// Touching ranges (one's check-out is the other's check-in) do not overlap.
func Overlaps(aIn, aOut, bIn, bOut time.Time) bool {
	return aIn.Before(bOut) && aOut.After(bIn)
}

// ValidateRange rejects empty and inverted ranges.
func ValidateRange(start, end time.Time) error {
	if !domain.Day(start).Before(domain.Day(end)) {
		return fmt.Errorf("%w: check_in must be before check_out", domain.ErrValidation)
	}
	return nil
}

// Occupancy counts, for each day of [start, end), the confirmed bookings
// whose stay contains that day. Cancelled bookings are ignored.
func Occupancy(bookings []domain.Booking, start, end time.Time) []int {
	start, end = domain.Day(start), domain.Day(end)
	n := domain.DaysBetween(start, end)
	if n <= 0 {
		return nil
	}
	counts := make([]int, n)
	for _, b := range bookings {
		if b.Status != domain.StatusConfirmed || !Overlaps(b.CheckIn, b.CheckOut, start, end) {
			continue
		}
		from := b.CheckIn
		if from.Before(start) {
			from = start
		}
		to := b.CheckOut
		if to.After(end) {
			to = end
		}
		for i := domain.DaysBetween(start, from); i < domain.DaysBetween(start, to); i++ {
			counts[i]++
		}
	}
	return counts
}

func peak(counts []int) int {
	p := 0
	for _, c := range counts {
		if c > p {
			p = c
		}
	}
	return p
}

func (e *AvailabilityEngine) CheckAvailability(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) (AvailabilityReport, error) {
	if err := ValidateRange(start, end); err != nil {
		return AvailabilityReport{}, err
	}
	h, err := e.getHotel(ctx, hotelID)
	if err != nil {
		return AvailabilityReport{}, err
	}
	rt, ok := h.RoomType(roomTypeID)
	if !ok {
		return AvailabilityReport{}, fmt.Errorf("%w: room type %q on hotel %q", domain.ErrNotFound, roomTypeID, hotelID)
	}
	return e.report(ctx, hotelID, rt, start, end)
}

// HotelAvailability reports every room type of a hotel over the same range.
func (e *AvailabilityEngine) HotelAvailability(ctx context.Context, hotelID string, start, end time.Time) ([]AvailabilityReport, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	h, err := e.getHotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	out := make([]AvailabilityReport, 0, len(h.RoomTypes))
	for _, rt := range h.RoomTypes {
		rep, err := e.report(ctx, hotelID, rt, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

func (e *AvailabilityEngine) HasCapacity(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) (bool, error) {
	if err := ValidateRange(start, end); err != nil {
		return false, err
	}
	h, err := e.getHotel(ctx, hotelID)
	if err != nil {
		return false, err
	}
	rt, ok := h.RoomType(roomTypeID)
	if !ok {
		return false, fmt.Errorf("%w: room type %q on hotel %q", domain.ErrNotFound, roomTypeID, hotelID)
	}
	return e.hasCapacity(ctx, hotelID, rt, start, end)
}

// hasCapacity is true when every night of [start, end) has at least one free room.
func (e *AvailabilityEngine) hasCapacity(ctx context.Context, hotelID string, rt domain.RoomType, start, end time.Time) (bool, error) {
	start, end = domain.Day(start), domain.Day(end)

	cctx, cancel := withTimeout(ctx, e.timeout)
	n, err := e.store.CountConfirmedOverlapping(cctx, hotelID, rt.ID, start, end)
	cancel()
	if err != nil {
		return false, domain.WrapStorage("count overlapping bookings", err)
	}
	// No night can hold more bookings than overlap the whole range.
	if n < rt.Capacity {
		return true, nil
	}

	bookings, err := e.listOverlapping(ctx, hotelID, rt.ID, start, end)
	if err != nil {
		return false, err
	}
	return peak(Occupancy(bookings, start, end)) < rt.Capacity, nil
}

func (e *AvailabilityEngine) report(ctx context.Context, hotelID string, rt domain.RoomType, start, end time.Time) (AvailabilityReport, error) {
	start, end = domain.Day(start), domain.Day(end)
	bookings, err := e.listOverlapping(ctx, hotelID, rt.ID, start, end)
	if err != nil {
		return AvailabilityReport{}, err
	}
	counts := Occupancy(bookings, start, end)
	rep := AvailabilityReport{
		HotelID:      hotelID,
		RoomTypeID:   rt.ID,
		RoomTypeName: rt.Name,
		Start:        start,
		End:          end,
		Days:         make([]DayAvailability, len(counts)),
	}
	for i, booked := range counts {
		avail := rt.Capacity - booked
		if avail < 0 {
			log.Error().
				Str("hotel_id", hotelID).
				Str("room_type_id", rt.ID).
				Int("booked", booked).
				Int("capacity", rt.Capacity).
				Msg("occupancy above capacity")
			avail = 0
		}
		rep.Days[i] = DayAvailability{
			Date:       start.AddDate(0, 0, i),
			Booked:     booked,
			Available:  avail,
			TotalRooms: rt.Capacity,
			Price:      rt.PricePerNight,
		}
	}
	return rep, nil
}

func (e *AvailabilityEngine) listOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) ([]domain.Booking, error) {
	cctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	bookings, err := e.store.ListConfirmedOverlapping(cctx, hotelID, roomTypeID, start, end)
	if err != nil {
		return nil, domain.WrapStorage("list overlapping bookings", err)
	}
	return bookings, nil
}

func (e *AvailabilityEngine) getHotel(ctx context.Context, id string) (domain.Hotel, error) {
	cctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()
	h, err := e.store.GetHotel(cctx, id)
	if err != nil {
		return domain.Hotel{}, domain.WrapStorage("get hotel", err)
	}
	return h, nil
}

// withTimeout bounds a single store call; d <= 0 leaves ctx untouched.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
