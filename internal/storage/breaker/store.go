// Package breaker guards an InventoryStore with a circuit breaker so a dead
// database fails requests fast instead of stacking up timeouts.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

type Config struct {
	Name             string
	FailureThreshold uint32        // consecutive infrastructure failures before opening
	OpenTimeout      time.Duration // how long to stay open before probing
	MaxProbes        uint32        // requests allowed while half-open
}

type Store struct {
	next domain.InventoryStore
	cb   *gobreaker.CircuitBreaker[any]
}

func New(next domain.InventoryStore, cfg Config) *Store {
	if cfg.Name == "" {
		cfg.Name = "inventory-store"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxProbes == 0 {
		cfg.MaxProbes = 1
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxProbes,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: healthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("store breaker state change")
			observability.ObserveBreaker(to.String())
		},
	}
	observability.ObserveBreaker(gobreaker.StateClosed.String())
	return &Store{next: next, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// healthy: typed domain outcomes and caller cancellation say nothing about
// the database's health.
func healthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	return domain.IsDomain(err)
}

func (s *Store) State() string { return s.cb.State().String() }

func (s *Store) do(op string, fn func() (any, error)) (any, error) {
	v, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.WrapStorage(op, err)
	}
	return v, err
}

func call[T any](s *Store, op string, fn func() (T, error)) (T, error) {
	v, err := s.do(op, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *Store) FindHotelsByLocation(ctx context.Context, location string) ([]domain.Hotel, error) {
	return call(s, "find hotels by location", func() ([]domain.Hotel, error) {
		return s.next.FindHotelsByLocation(ctx, location)
	})
}

func (s *Store) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	return call(s, "get hotel", func() (domain.Hotel, error) { return s.next.GetHotel(ctx, id) })
}

func (s *Store) ListHotels(ctx context.Context, limit int) ([]domain.Hotel, error) {
	return call(s, "list hotels", func() ([]domain.Hotel, error) { return s.next.ListHotels(ctx, limit) })
}

func (s *Store) CountConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) (int, error) {
	return call(s, "count overlapping bookings", func() (int, error) {
		return s.next.CountConfirmedOverlapping(ctx, hotelID, roomTypeID, start, end)
	})
}

func (s *Store) ListConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) ([]domain.Booking, error) {
	return call(s, "list overlapping bookings", func() ([]domain.Booking, error) {
		return s.next.ListConfirmedOverlapping(ctx, hotelID, roomTypeID, start, end)
	})
}

func (s *Store) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	return call(s, "insert booking", func() (domain.Booking, error) { return s.next.InsertBooking(ctx, b) })
}

func (s *Store) UpdateBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus) (domain.Booking, error) {
	return call(s, "update booking status", func() (domain.Booking, error) {
		return s.next.UpdateBookingStatus(ctx, id, from, to)
	})
}

func (s *Store) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	return call(s, "get booking", func() (domain.Booking, error) { return s.next.GetBooking(ctx, id) })
}

func (s *Store) ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return call(s, "list bookings", func() ([]domain.Booking, error) { return s.next.ListBookingsByUser(ctx, userID) })
}

func (s *Store) ListRatings(ctx context.Context, hotelID string) ([]domain.Rating, error) {
	return call(s, "list ratings", func() ([]domain.Rating, error) { return s.next.ListRatings(ctx, hotelID) })
}

func (s *Store) AppendRating(ctx context.Context, r domain.Rating) error {
	_, err := s.do("append rating", func() (any, error) { return nil, s.next.AppendRating(ctx, r) })
	return err
}

func (s *Store) UpsertHotel(ctx context.Context, h domain.Hotel) error {
	_, err := s.do("upsert hotel", func() (any, error) { return nil, s.next.UpsertHotel(ctx, h) })
	return err
}
