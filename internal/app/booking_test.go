package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/storage/memory"
)

var fixedNow = time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.BookingEvent
	err    error
}

func (p *recordingPublisher) PublishBooking(ctx context.Context, ev domain.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func newBookingService(t *testing.T, store domain.InventoryStore, pub domain.EventPublisher) *app.BookingService {
	t.Helper()
	avail := app.NewAvailabilityEngine(store, time.Second)
	return app.NewBookingService(store, avail, app.NewKeyedLocker(), pub, app.BookingOptions{
		StoreTimeout: time.Second,
		MaxRetries:   3,
		Now:          func() time.Time { return fixedNow },
	})
}

func bookingReq(user, in, out string) app.CreateBookingRequest {
	return app.CreateBookingRequest{
		UserID: user, HotelID: "h1", RoomTypeID: "std",
		CheckIn: in, CheckOut: out, Guests: 2,
	}
}

func TestCreateBooking_Confirmed(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newBookingService(t, newStore(t, twoRoomHotel()), pub)

	b, err := svc.CreateBooking(context.Background(), bookingReq("alice", "2030-01-10", "2030-01-13"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if b.ID == "" || b.Status != domain.StatusConfirmed || b.UserID != "alice" {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if b.Nights() != 3 || b.TotalPrice != 300 {
		t.Fatalf("nights=%d total=%v", b.Nights(), b.TotalPrice)
	}
	if len(pub.events) != 1 || pub.events[0].Type != domain.EventBookingConfirmed || pub.events[0].BookingID != b.ID {
		t.Fatalf("events: %+v", pub.events)
	}
}

func TestCreateBooking_PublishFailureDoesNotFailBooking(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newBookingService(t, newStore(t, twoRoomHotel()), pub)
	if _, err := svc.CreateBooking(context.Background(), bookingReq("alice", "2030-01-10", "2030-01-11")); err != nil {
		t.Fatalf("err: %v", err)
	}
}

func withReq(edit func(r *app.CreateBookingRequest)) app.CreateBookingRequest {
	r := bookingReq("u", "2030-01-10", "2030-01-11")
	edit(&r)
	return r
}

func TestCreateBooking_Rejections(t *testing.T) {
	svc := newBookingService(t, newStore(t, twoRoomHotel()), nil)
	cases := []struct {
		name string
		req  app.CreateBookingRequest
		want error
	}{
		{"missing user", bookingReq("", "2030-01-10", "2030-01-11"), domain.ErrValidation},
		{"zero guests", withReq(func(r *app.CreateBookingRequest) { r.Guests = 0 }), domain.ErrValidation},
		{"bad date", bookingReq("u", "2030-13-01", "2030-01-11"), domain.ErrValidation},
		{"inverted", bookingReq("u", "2030-01-11", "2030-01-10"), domain.ErrValidation},
		{"zero nights", bookingReq("u", "2030-01-10", "2030-01-10"), domain.ErrValidation},
		{"past", bookingReq("u", "2029-12-31", "2030-01-02"), domain.ErrValidation},
		{"unknown hotel", withReq(func(r *app.CreateBookingRequest) { r.HotelID = "nope" }), domain.ErrNotFound},
		{"unknown room", withReq(func(r *app.CreateBookingRequest) { r.RoomTypeID = "nope" }), domain.ErrNotFound},
		{"too many guests", withReq(func(r *app.CreateBookingRequest) { r.Guests = 3 }), domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateBooking(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreateBooking_CheckInTodayAllowed(t *testing.T) {
	svc := newBookingService(t, newStore(t, twoRoomHotel()), nil)
	if _, err := svc.CreateBooking(context.Background(), bookingReq("u", "2030-01-01", "2030-01-02")); err != nil {
		t.Fatalf("same-day check-in: %v", err)
	}
}

func TestCreateBooking_CapacityAndAdjacency(t *testing.T) {
	svc := newBookingService(t, newStore(t, twoRoomHotel()), nil)
	ctx := context.Background()

	for _, u := range []string{"a", "b"} {
		if _, err := svc.CreateBooking(ctx, bookingReq(u, "2030-01-10", "2030-01-12")); err != nil {
			t.Fatalf("booking %s: %v", u, err)
		}
	}
	if _, err := svc.CreateBooking(ctx, bookingReq("c", "2030-01-11", "2030-01-13")); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("third overlapping booking: %v", err)
	}
	// check-out day of the full range is free again
	if _, err := svc.CreateBooking(ctx, bookingReq("c", "2030-01-12", "2030-01-13")); err != nil {
		t.Fatalf("adjacent booking: %v", err)
	}
}

func TestCreateBooking_TwoRoomJanuaryScenario(t *testing.T) {
	svc := newBookingService(t, newStore(t, twoRoomHotel()), nil)
	ctx := context.Background()

	for _, u := range []string{"a", "b"} {
		if _, err := svc.CreateBooking(ctx, bookingReq(u, "2030-01-01", "2030-01-05")); err != nil {
			t.Fatalf("booking %s: %v", u, err)
		}
	}
	if _, err := svc.CreateBooking(ctx, bookingReq("c", "2030-01-03", "2030-01-06")); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("Jan 3-6: want ErrCapacityExceeded, got %v", err)
	}
	if _, err := svc.CreateBooking(ctx, bookingReq("c", "2030-01-05", "2030-01-08")); err != nil {
		t.Fatalf("Jan 5-8: %v", err)
	}
}

func TestCreateBooking_LongStayPrice(t *testing.T) {
	svc := newBookingService(t, newStore(t, twoRoomHotel()), nil)
	b, err := svc.CreateBooking(context.Background(), bookingReq("u", "2030-01-10", "2500-01-01"))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if b.Nights() != 171655 || b.TotalPrice != 171655*100 {
		t.Fatalf("nights=%d total=%v", b.Nights(), b.TotalPrice)
	}
}

func TestCreateBooking_ConcurrentNeverOverbooks(t *testing.T) {
	store := newStore(t, twoRoomHotel())
	svc := newBookingService(t, store, nil)
	ctx := context.Background()

	const n = 20
	var ok, full int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateBooking(ctx, bookingReq("user", "2030-03-01", "2030-03-04"))
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, domain.ErrCapacityExceeded):
				atomic.AddInt32(&full, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 2 || full != n-2 {
		t.Fatalf("confirmed=%d rejected=%d, want 2 and %d", ok, full, n-2)
	}
	bs, _ := store.ListConfirmedOverlapping(ctx, "h1", "std", day(t, "2030-03-01"), day(t, "2030-03-04"))
	if len(bs) != 2 {
		t.Fatalf("stored confirmed = %d", len(bs))
	}
}

// racyStore rejects the first inserts as if a concurrent writer won.
type racyStore struct {
	*memory.Store
	conflicts int32
	inserts   int32
}

func (s *racyStore) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	atomic.AddInt32(&s.inserts, 1)
	if atomic.AddInt32(&s.conflicts, -1) >= 0 {
		return domain.Booking{}, domain.ErrConflict
	}
	return s.Store.InsertBooking(ctx, b)
}

func TestCreateBooking_RetriesLostRace(t *testing.T) {
	store := &racyStore{Store: newStore(t, twoRoomHotel()), conflicts: 2}
	svc := newBookingService(t, store, nil)
	if _, err := svc.CreateBooking(context.Background(), bookingReq("u", "2030-01-10", "2030-01-11")); err != nil {
		t.Fatalf("err: %v", err)
	}
	if store.inserts != 3 {
		t.Fatalf("inserts = %d, want 3", store.inserts)
	}

	always := &racyStore{Store: newStore(t, twoRoomHotel()), conflicts: 100}
	svc = newBookingService(t, always, nil)
	if _, err := svc.CreateBooking(context.Background(), bookingReq("u", "2030-01-10", "2030-01-11")); !errors.Is(err, domain.ErrCapacityExceeded) {
		t.Fatalf("exhausted retries: %v", err)
	}
	if always.inserts != 4 {
		t.Fatalf("inserts = %d, want 1 + 3 retries", always.inserts)
	}
}

type brokenStore struct{ *memory.Store }

func (brokenStore) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	return domain.Hotel{}, errors.New("dial tcp: connection refused")
}

func TestCreateBooking_StorageFailureIsWrapped(t *testing.T) {
	svc := newBookingService(t, brokenStore{memory.New()}, nil)
	_, err := svc.CreateBooking(context.Background(), bookingReq("u", "2030-01-10", "2030-01-11"))
	if !errors.Is(err, domain.ErrStorageUnavailable) || !domain.Retryable(err) {
		t.Fatalf("want storage unavailable, got %v", err)
	}
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Op != "get hotel" {
		t.Fatalf("want StorageError for get hotel, got %#v", err)
	}
}

func TestCancelBooking(t *testing.T) {
	pub := &recordingPublisher{}
	store := newStore(t, twoRoomHotel())
	svc := newBookingService(t, store, pub)
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, bookingReq("alice", "2030-01-10", "2030-01-12"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CancelBooking(ctx, b.ID, "mallory"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign cancel: %v", err)
	}
	c, err := svc.CancelBooking(ctx, b.ID, "alice")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if c.Status != domain.StatusCancelled || c.CancelledAt == nil {
		t.Fatalf("cancelled booking: %+v", c)
	}
	if _, err := svc.CancelBooking(ctx, b.ID, "alice"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("double cancel: %v", err)
	}
	if _, err := svc.CancelBooking(ctx, "missing", "alice"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing booking: %v", err)
	}
	if len(pub.events) != 2 || pub.events[1].Type != domain.EventBookingCancelled {
		t.Fatalf("events: %+v", pub.events)
	}

	// the freed room can be booked again
	n, err := store.CountConfirmedOverlapping(ctx, "h1", "std", day(t, "2030-01-10"), day(t, "2030-01-12"))
	if err != nil || n != 0 {
		t.Fatalf("confirmed after cancel = %d %v", n, err)
	}
}

func TestGetAndListBookings_Ownership(t *testing.T) {
	svc := newBookingService(t, newStore(t, twoRoomHotel()), nil)
	ctx := context.Background()

	b, err := svc.CreateBooking(ctx, bookingReq("alice", "2030-01-10", "2030-01-11"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateBooking(ctx, bookingReq("bob", "2030-01-10", "2030-01-11")); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got, err := svc.GetBooking(ctx, b.ID, "alice"); err != nil || got.ID != b.ID {
		t.Fatalf("owner get: %v %v", got, err)
	}
	if _, err := svc.GetBooking(ctx, b.ID, "bob"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign get: %v", err)
	}
	if _, err := svc.GetBooking(ctx, b.ID, ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("anonymous get: %v", err)
	}

	list, err := svc.ListBookings(ctx, "alice")
	if err != nil || len(list) != 1 || list[0].UserID != "alice" {
		t.Fatalf("list: %v %v", list, err)
	}
}
