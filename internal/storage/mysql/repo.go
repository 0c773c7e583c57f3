package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"stayfinder/internal/domain"
)

const errDuplicateEntry = 1062

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valJSON(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Repo { return &Repo{db: db, now: time.Now} }

// ---- hotels ----

func (r *Repo) UpsertHotel(ctx context.Context, h domain.Hotel) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, upsertHotelSQL,
		h.ID,
		h.Name,
		h.Location,
		valStr(h.Description),
		valJSON(h.Amenities),
		h.AverageRating,
		valStr(h.ImageURL),
	); err != nil {
		return err
	}
	for _, rt := range h.RoomTypes {
		if _, err := tx.ExecContext(ctx, upsertRoomTypeSQL,
			h.ID,
			rt.ID,
			rt.Name,
			valStr(rt.Description),
			rt.Capacity,
			rt.MaxGuests,
			rt.PricePerNight,
			valJSON(rt.Amenities),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	hs, err := r.queryHotels(ctx, getHotelSQL, id)
	if err != nil {
		return domain.Hotel{}, err
	}
	if len(hs) == 0 {
		return domain.Hotel{}, fmt.Errorf("%w: hotel %q", domain.ErrNotFound, id)
	}
	return hs[0], nil
}

func (r *Repo) FindHotelsByLocation(ctx context.Context, location string) ([]domain.Hotel, error) {
	return r.queryHotels(ctx, findHotelsByLocationSQL, strings.ToLower(strings.TrimSpace(location)))
}

func (r *Repo) ListHotels(ctx context.Context, limit int) ([]domain.Hotel, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.queryHotels(ctx, listHotelsSQL, limit)
}

// queryHotels loads hotel rows and then their room types in one IN query.
func (r *Repo) queryHotels(ctx context.Context, q string, args ...any) ([]domain.Hotel, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Hotel
	index := map[string]int{}
	for rows.Next() {
		var (
			h             domain.Hotel
			desc, image   sql.NullString
			amenitiesJSON []byte
		)
		if err := rows.Scan(&h.ID, &h.Name, &h.Location, &desc, &amenitiesJSON, &h.AverageRating, &image); err != nil {
			return nil, err
		}
		h.Description = desc.String
		h.ImageURL = image.String
		_ = json.Unmarshal(amenitiesJSON, &h.Amenities)
		index[h.ID] = len(out)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]any, 0, len(out))
	for _, h := range out {
		ids = append(ids, h.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rtRows, err := r.db.QueryContext(ctx, roomTypesForHotelsPrefix+placeholders+") ORDER BY hotel_id, id", ids...)
	if err != nil {
		return nil, err
	}
	defer rtRows.Close()
	for rtRows.Next() {
		var (
			hotelID       string
			rt            domain.RoomType
			desc          sql.NullString
			amenitiesJSON []byte
		)
		if err := rtRows.Scan(&hotelID, &rt.ID, &rt.Name, &desc, &rt.Capacity, &rt.MaxGuests, &rt.PricePerNight, &amenitiesJSON); err != nil {
			return nil, err
		}
		rt.Description = desc.String
		_ = json.Unmarshal(amenitiesJSON, &rt.Amenities)
		if i, ok := index[hotelID]; ok {
			out[i].RoomTypes = append(out[i].RoomTypes, rt)
		}
	}
	return out, rtRows.Err()
}

// ---- bookings ----

type rowScanner interface{ Scan(dest ...any) error }

func scanBooking(s rowScanner) (domain.Booking, error) {
	var (
		b           domain.Booking
		status      string
		cancelledAt sql.NullTime
	)
	if err := s.Scan(&b.ID, &b.HotelID, &b.RoomTypeID, &b.UserID, &b.CheckIn, &b.CheckOut,
		&status, &b.Guests, &b.TotalPrice, &b.CreatedAt, &cancelledAt); err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.CheckIn, b.CheckOut = domain.Day(b.CheckIn), domain.Day(b.CheckOut)
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		b.CancelledAt = &t
	}
	return b, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listBookings(ctx context.Context, q querier, query string, args ...any) ([]domain.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) CountConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, countConfirmedOverlappingSQL, hotelID, roomTypeID, domain.Day(end), domain.Day(start)).Scan(&n)
	return n, err
}

func (r *Repo) ListConfirmedOverlapping(ctx context.Context, hotelID, roomTypeID string, start, end time.Time) ([]domain.Booking, error) {
	return listBookings(ctx, r.db, listConfirmedOverlappingSQL, hotelID, roomTypeID, domain.Day(end), domain.Day(start))
}

// InsertBooking locks the room type row, recomputes per-night occupancy from
// confirmed bookings and inserts only if every night still has a free room.
func (r *Repo) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return domain.Booking{}, err
	}
	defer tx.Rollback()

	var capacity int
	if err := tx.QueryRowContext(ctx, lockRoomTypeSQL, b.HotelID, b.RoomTypeID).Scan(&capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, fmt.Errorf("%w: room type %q on hotel %q", domain.ErrNotFound, b.RoomTypeID, b.HotelID)
		}
		return domain.Booking{}, err
	}

	if b.Status == domain.StatusConfirmed {
		existing, err := listBookings(ctx, tx, listConfirmedOverlappingSQL, b.HotelID, b.RoomTypeID, b.CheckOut, b.CheckIn)
		if err != nil {
			return domain.Booking{}, err
		}
		for day := b.CheckIn; day.Before(b.CheckOut); day = day.AddDate(0, 0, 1) {
			n := 0
			for _, e := range existing {
				if e.Contains(day) {
					n++
				}
			}
			if n >= capacity {
				return domain.Booking{}, fmt.Errorf("%w: %s full on %s", domain.ErrConflict, b.RoomTypeID, day.Format(domain.DayLayout))
			}
		}
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = r.now().UTC()
	}
	if _, err := tx.ExecContext(ctx, insertBookingSQL,
		b.ID, b.HotelID, b.RoomTypeID, b.UserID,
		b.CheckIn, b.CheckOut, string(b.Status),
		b.Guests, b.TotalPrice, b.CreatedAt,
	); err != nil {
		var me *mysqldrv.MySQLError
		if errors.As(err, &me) && me.Number == errDuplicateEntry {
			return domain.Booking{}, fmt.Errorf("%w: booking %s already exists", domain.ErrConflict, b.ID)
		}
		return domain.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

func (r *Repo) UpdateBookingStatus(ctx context.Context, id string, from, to domain.BookingStatus) (domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Booking{}, err
	}
	defer tx.Rollback()

	b, err := scanBooking(tx.QueryRowContext(ctx, getBookingForUpdateSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, fmt.Errorf("%w: booking %q", domain.ErrNotFound, id)
		}
		return domain.Booking{}, err
	}
	if b.Status != from || !domain.CanTransition(from, to) {
		return domain.Booking{}, fmt.Errorf("%w: booking %s is %s", domain.ErrInvalidTransition, id, b.Status)
	}

	var cancelledAt any
	if to == domain.StatusCancelled {
		at := r.now().UTC()
		b.CancelledAt = &at
		cancelledAt = at
	}
	if _, err := tx.ExecContext(ctx, updateBookingStatusSQL, string(to), cancelledAt, id, string(from)); err != nil {
		return domain.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Booking{}, err
	}
	b.Status = to
	return b, nil
}

func (r *Repo) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, getBookingSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, fmt.Errorf("%w: booking %q", domain.ErrNotFound, id)
	}
	return b, err
}

func (r *Repo) ListBookingsByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return listBookings(ctx, r.db, listBookingsByUserSQL, userID)
}

// ---- ratings ----

func (r *Repo) ListRatings(ctx context.Context, hotelID string) ([]domain.Rating, error) {
	rows, err := r.db.QueryContext(ctx, listRatingsSQL, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Rating
	for rows.Next() {
		var rt domain.Rating
		if err := rows.Scan(&rt.UserID, &rt.HotelID, &rt.Score, &rt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *Repo) AppendRating(ctx context.Context, rt domain.Rating) error {
	var one int
	if err := r.db.QueryRowContext(ctx, hotelExistsSQL, rt.HotelID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: hotel %q", domain.ErrNotFound, rt.HotelID)
		}
		return err
	}
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertRatingSQL, rt.HotelID, rt.UserID, rt.Score, rt.CreatedAt)
	return err
}
