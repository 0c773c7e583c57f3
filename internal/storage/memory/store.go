// Package memory is an in-process InventoryStore for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stayfinder/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	hotels   map[string]domain.Hotel
	bookings map[string]domain.Booking
	ratings  map[string][]domain.Rating // by hotel id
	now      func() time.Time
}

func New() *Store {
	return &Store{
		hotels:   make(map[string]domain.Hotel),
		bookings: make(map[string]domain.Booking),
		ratings:  make(map[string][]domain.Rating),
		now:      time.Now,
	}
}

func (s *Store) FindHotelsByLocation(ctx context.Context, location string) ([]domain.Hotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Hotel
	for _, h := range s.hotels {
		if strings.EqualFold(strings.TrimSpace(h.Location), strings.TrimSpace(location)) {
			out = append(out, cloneHotel(h))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	if err := ctx.Err(); err != nil {
		return domain.Hotel{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.hotels[id]
	if !ok {
		return domain.Hotel{}, fmt.Errorf("%w: hotel %q", domain.ErrNotFound, id)
	}
	return cloneHotel(h), nil
}

func (s *Store) ListHotels(ctx context.Context, limit int) ([]domain.Hotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Hotel, 0, len(s.hotels))
	for _, h := range s.hotels {
		out = append(out, cloneHotel(h))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) (int, error) {
	bs, err := s.ListConfirmedOverlapping(ctx, hotelID, roomTypeID, start, end)
	return len(bs), err
}

func (s *Store) ListConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlappingLocked(hotelID, roomTypeID, start, end), nil
}

func (s *Store) overlappingLocked(hotelID, roomTypeID string, start, end time.Time) []domain.Booking {
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.HotelID != hotelID || b.RoomTypeID != roomTypeID || b.Status != domain.StatusConfirmed {
			continue
		}
		if b.CheckIn.Before(end) && b.CheckOut.After(start) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// InsertBooking re-checks per-night occupancy under the write lock, so two
// racing inserts cannot both take the last room.
func (s *Store) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hotels[b.HotelID]
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: hotel %q", domain.ErrNotFound, b.HotelID)
	}
	rt, ok := h.RoomType(b.RoomTypeID)
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: room type %q", domain.ErrNotFound, b.RoomTypeID)
	}
	if _, dup := s.bookings[b.ID]; dup {
		return domain.Booking{}, fmt.Errorf("%w: booking %s already exists", domain.ErrConflict, b.ID)
	}
	if b.Status == domain.StatusConfirmed {
		existing := s.overlappingLocked(b.HotelID, b.RoomTypeID, b.CheckIn, b.CheckOut)
		for day := b.CheckIn; day.Before(b.CheckOut); day = day.AddDate(0, 0, 1) {
			n := 0
			for _, e := range existing {
				if e.Contains(day) {
					n++
				}
			}
			if n >= rt.Capacity {
				return domain.Booking{}, fmt.Errorf("%w: %s full on %s", domain.ErrConflict, rt.ID, day.Format(domain.DayLayout))
			}
		}
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now().UTC()
	}
	s.bookings[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: booking %q", domain.ErrNotFound, id)
	}
	if b.Status != from || !domain.CanTransition(from, to) {
		return domain.Booking{}, fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, id, b.Status)
	}
	b.Status = to
	if to == domain.StatusCancelled {
		at := s.now().UTC()
		b.CancelledAt = &at
	}
	s.bookings[id] = b
	return b, nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return domain.Booking{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: booking %q", domain.ErrNotFound, id)
	}
	return b, nil
}

// ListBookingsByUser returns newest first.
func (s *Store) ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ListRatings(ctx context.Context, hotelID string) ([]domain.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Rating(nil), s.ratings[hotelID]...), nil
}

func (s *Store) AppendRating(ctx context.Context, r domain.Rating) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hotels[r.HotelID]; !ok {
		return fmt.Errorf("%w: hotel %q", domain.ErrNotFound, r.HotelID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	s.ratings[r.HotelID] = append(s.ratings[r.HotelID], r)
	return nil
}

func (s *Store) UpsertHotel(ctx context.Context, h domain.Hotel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hotels[h.ID] = cloneHotel(h)
	return nil
}

func cloneHotel(h domain.Hotel) domain.Hotel {
	h.Amenities = append([]string(nil), h.Amenities...)
	rts := make([]domain.RoomType, len(h.RoomTypes))
	for i, rt := range h.RoomTypes {
		rt.Amenities = append([]string(nil), rt.Amenities...)
		rts[i] = rt
	}
	h.RoomTypes = rts
	return h
}
