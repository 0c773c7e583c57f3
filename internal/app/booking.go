package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

type CreateBookingRequest struct {
	UserID     string `json:"-" validate:"required"`
	HotelID    string `json:"hotel_id" validate:"required"`
	RoomTypeID string `json:"room_type_id" validate:"required"`
	CheckIn    string `json:"check_in" validate:"required"`
	CheckOut   string `json:"check_out" validate:"required"`
	Guests     int    `json:"guests" validate:"required,gte=1"`
}

type BookingOptions struct {
	StoreTimeout time.Duration
	LockWait     time.Duration
	MaxRetries   int
	Now          func() time.Time
}

// BookingService validates and persists bookings. The capacity check and the
// write for one room type run under a single lock, and the store re-checks
// capacity as part of the insert.
type BookingService struct {
	store      domain.InventoryStore
	avail      *AvailabilityEngine
	locker     domain.Locker
	events     domain.EventPublisher
	timeout    time.Duration
	lockWait   time.Duration
	maxRetries int
	now        func() time.Time
	newID      func() string
}

func NewBookingService(s domain.InventoryStore, a *AvailabilityEngine, l domain.Locker, ev domain.EventPublisher, opts BookingOptions) *BookingService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	return &BookingService{
		store:      s,
		avail:      a,
		locker:     l,
		events:     ev,
		timeout:    opts.StoreTimeout,
		lockWait:   opts.LockWait,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		newID:      uuid.NewString,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (domain.Booking, error) {
	b, err := s.createBooking(ctx, req)
	observability.ObserveBooking(outcomeLabel("confirmed", err))
	if err != nil {
		log.Info().
			Str("hotel_id", req.HotelID).
			Str("room_type_id", req.RoomTypeID).
			Str("check_in", req.CheckIn).
			Str("check_out", req.CheckOut).
			Err(err).
			Msg("booking rejected")
		return domain.Booking{}, err
	}
	log.Info().Str("booking_id", b.ID).Str("hotel_id", b.HotelID).Msg("booking confirmed")
	s.publish(ctx, domain.EventBookingConfirmed, b)
	return b, nil
}

func (s *BookingService) createBooking(ctx context.Context, req CreateBookingRequest) (domain.Booking, error) {
	// 1) required fields
	if err := validateStruct(req); err != nil {
		return domain.Booking{}, err
	}

	// 2) dates parse and are ordered
	checkIn, err := domain.ParseDay(req.CheckIn)
	if err != nil {
		return domain.Booking{}, err
	}
	checkOut, err := domain.ParseDay(req.CheckOut)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := ValidateRange(checkIn, checkOut); err != nil {
		return domain.Booking{}, err
	}

	// 3) no retroactive bookings
	if checkIn.Before(domain.Day(s.now())) {
		return domain.Booking{}, fmt.Errorf("%w: check_in is in the past", domain.ErrValidation)
	}

	// 4) hotel, 5) room type
	cctx, cancel := withTimeout(ctx, s.timeout)
	hotel, err := s.store.GetHotel(cctx, req.HotelID)
	cancel()
	if err != nil {
		return domain.Booking{}, domain.WrapStorage("get hotel", err)
	}
	rt, ok := hotel.RoomType(req.RoomTypeID)
	if !ok {
		return domain.Booking{}, fmt.Errorf("%w: room type %q on hotel %q", domain.ErrNotFound, req.RoomTypeID, req.HotelID)
	}
	if rt.MaxGuests > 0 && req.Guests > rt.MaxGuests {
		return domain.Booking{}, fmt.Errorf("%w: room type %q allows at most %d guests", domain.ErrValidation, rt.ID, rt.MaxGuests)
	}

	nights := domain.DaysBetween(checkIn, checkOut)
	candidate := domain.Booking{
		HotelID:    hotel.ID,
		RoomTypeID: rt.ID,
		UserID:     req.UserID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Status:     domain.StatusConfirmed,
		Guests:     req.Guests,
		TotalPrice: math.Round(float64(nights)*rt.PricePerNight*100) / 100,
	}

	// 6) capacity + write, serialized per room type
	return s.reserve(ctx, rt, candidate)
}

func (s *BookingService) reserve(ctx context.Context, rt domain.RoomType, b domain.Booking) (domain.Booking, error) {
	lctx, cancel := withTimeout(ctx, s.lockWait)
	unlock, err := s.locker.Lock(lctx, BookingLockKey(b.HotelID, rt.ID))
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.Booking{}, fmt.Errorf("%w: room type is busy, retry", domain.ErrConflict)
		}
		return domain.Booking{}, domain.WrapStorage("acquire booking lock", err)
	}
	defer unlock()

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		ok, err := s.avail.hasCapacity(ctx, b.HotelID, rt, b.CheckIn, b.CheckOut)
		if err != nil {
			return domain.Booking{}, err
		}
		if !ok {
			return domain.Booking{}, fmt.Errorf("%w: no %q room free for every night from %s to %s",
				domain.ErrCapacityExceeded, rt.ID, b.CheckIn.Format(domain.DayLayout), b.CheckOut.Format(domain.DayLayout))
		}

		b.ID = s.newID()
		b.CreatedAt = s.now().UTC()
		cctx, cancel := withTimeout(ctx, s.timeout)
		saved, err := s.store.InsertBooking(cctx, b)
		cancel()
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Booking{}, domain.WrapStorage("insert booking", err)
		}
		log.Warn().
			Str("hotel_id", b.HotelID).
			Str("room_type_id", rt.ID).
			Int("attempt", attempt+1).
			Msg("booking write lost capacity race")
	}
	return domain.Booking{}, fmt.Errorf("%w: room type %q filled up by concurrent bookings", domain.ErrCapacityExceeded, rt.ID)
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID, requester string) (domain.Booking, error) {
	b, err := s.cancelBooking(ctx, bookingID, requester)
	if err != nil {
		observability.ObserveBooking(outcomeLabel("cancelled", err))
		return domain.Booking{}, err
	}
	observability.ObserveBooking("cancelled")
	log.Info().Str("booking_id", b.ID).Msg("booking cancelled")
	s.publish(ctx, domain.EventBookingCancelled, b)
	return b, nil
}

func (s *BookingService) cancelBooking(ctx context.Context, bookingID, requester string) (domain.Booking, error) {
	b, err := s.GetBooking(ctx, bookingID, requester)
	if err != nil {
		return domain.Booking{}, err
	}
	if !domain.CanTransition(b.Status, domain.StatusCancelled) {
		return domain.Booking{}, fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, b.ID, b.Status)
	}
	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	updated, err := s.store.UpdateBookingStatus(cctx, b.ID, b.Status, domain.StatusCancelled)
	if err != nil {
		return domain.Booking{}, domain.WrapStorage("update booking status", err)
	}
	return updated, nil
}

// GetBooking returns a booking owned by requester.
func (s *BookingService) GetBooking(ctx context.Context, bookingID, requester string) (domain.Booking, error) {
	if requester == "" {
		return domain.Booking{}, fmt.Errorf("%w: requester identity missing", domain.ErrForbidden)
	}
	if bookingID == "" {
		return domain.Booking{}, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	b, err := s.store.GetBooking(cctx, bookingID)
	if err != nil {
		return domain.Booking{}, domain.WrapStorage("get booking", err)
	}
	if b.UserID != requester {
		return domain.Booking{}, fmt.Errorf("%w: booking %s belongs to another user", domain.ErrForbidden, b.ID)
	}
	return b, nil
}

func (s *BookingService) ListBookings(ctx context.Context, requester string) ([]domain.Booking, error) {
	if requester == "" {
		return nil, fmt.Errorf("%w: requester identity missing", domain.ErrForbidden)
	}
	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	bs, err := s.store.ListBookingsByUser(cctx, requester)
	if err != nil {
		return nil, domain.WrapStorage("list bookings", err)
	}
	return bs, nil
}

func (s *BookingService) publish(ctx context.Context, typ string, b domain.Booking) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishBooking(ctx, domain.NewBookingEvent(typ, b, s.now())); err != nil {
		log.Warn().Err(err).Str("booking_id", b.ID).Str("event", typ).Msg("publish booking event failed")
	}
}

// outcomeLabel maps an error to a bounded metrics label.
func outcomeLabel(success string, err error) string {
	switch {
	case err == nil:
		return success
	case errors.Is(err, domain.ErrValidation):
		return "rejected_validation"
	case errors.Is(err, domain.ErrNotFound):
		return "rejected_not_found"
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "rejected_capacity"
	case errors.Is(err, domain.ErrForbidden):
		return "rejected_forbidden"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "rejected_transition"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "storage_unavailable"
	}
}
