package domain

import (
	"context"
	"time"
)

type InventoryStore interface {
	// Hotel reads
	FindHotelsByLocation(ctx context.Context, location string) ([]Hotel, error)
	GetHotel(ctx context.Context, id string) (Hotel, error)
	ListHotels(ctx context.Context, limit int) ([]Hotel, error)

	// Occupancy reads over the half-open range [start, end)
	CountConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) (int, error)
	ListConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) ([]Booking, error)

	// InsertBooking persists a confirmed booking only if, atomically with the
	// write, every night of the stay still has a free room. Returns ErrConflict
	// otherwise.
	InsertBooking(ctx context.Context, b Booking) (Booking, error)
	// UpdateBookingStatus moves a booking from -> to; ErrNotFound or
	// ErrInvalidTransition when the current status is not from.
	UpdateBookingStatus(ctx context.Context, id string, from, to BookingStatus) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]Booking, error)

	// Ratings
	ListRatings(ctx context.Context, hotelID string) ([]Rating, error)
	AppendRating(ctx context.Context, r Rating) error

	// Seeding
	UpsertHotel(ctx context.Context, h Hotel) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// Locker serializes the check-and-reserve sequence per key.
type Locker interface {
	// Lock blocks until the key is held or ctx is done; the returned func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// CatalogClient pulls hotel content from a remote catalog for seeding.
type CatalogClient interface {
	ListHotelIDs(ctx context.Context) ([]string, error)
	GetHotel(ctx context.Context, id string) (map[string]any, error)
	GetRatings(ctx context.Context, id string) ([]map[string]any, error)
}

type EventPublisher interface {
	PublishBooking(ctx context.Context, ev BookingEvent) error
}

type BookingEvent struct {
	Type       string    `json:"type"` // booking.confirmed | booking.cancelled
	BookingID  string    `json:"booking_id"`
	HotelID    string    `json:"hotel_id"`
	RoomTypeID string    `json:"room_type_id"`
	UserID     string    `json:"user_id"`
	CheckIn    string    `json:"check_in"`
	CheckOut   string    `json:"check_out"`
	Guests     int       `json:"guests"`
	TotalPrice float64   `json:"total_price"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

// NewBookingEvent builds the event payload for a booking state change.
func NewBookingEvent(typ string, b Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		HotelID:    b.HotelID,
		RoomTypeID: b.RoomTypeID,
		UserID:     b.UserID,
		CheckIn:    b.CheckIn.Format(DayLayout),
		CheckOut:   b.CheckOut.Format(DayLayout),
		Guests:     b.Guests,
		TotalPrice: b.TotalPrice,
		OccurredAt: at.UTC(),
	}
}
