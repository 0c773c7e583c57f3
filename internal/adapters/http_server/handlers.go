package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
)

type Handlers struct {
	Q        *app.QueryService
	Avail    *app.AvailabilityEngine
	Scores   *app.ScoringEngine
	Bookings *app.BookingService
	Ratings  *app.RatingService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/hotels", h.listHotels)
	s.mux.Get("/v1/hotels/{id}", h.getHotel)
	s.mux.Get("/v1/hotels/{id}/availability", h.availability)
	s.mux.Post("/v1/hotels/{id}/ratings", h.submitRating)

	s.mux.Post("/v1/recommendations", h.recommend)

	s.mux.Post("/v1/bookings", h.createBooking)
	s.mux.Get("/v1/bookings", h.listBookings)
	s.mux.Get("/v1/bookings/{id}", h.getBooking)
	s.mux.Post("/v1/bookings/{id}/cancel", h.cancelBooking)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps typed errors to problem responses. Unknown errors are 500
// with no detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Invalid Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrCapacityExceeded):
		writeProblem(w, http.StatusConflict, "Capacity Exceeded", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeProblem(w, http.StatusConflict, "Invalid Status Transition", err.Error())
	case errors.Is(err, domain.ErrConflict):
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		ev := log.Error().Err(err).Str("path", r.URL.Path)
		var se *domain.StorageError
		if errors.As(err, &se) && se.Err != nil {
			ev = ev.AnErr("cause", se.Err)
		}
		ev.Msg("storage unavailable")
		w.Header().Set("Retry-After", "5")
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "storage temporarily unavailable, retry later")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeCached writes v with an ETag, answering 304 when the client has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write cached body")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return false
	}
	return true
}

func requireRequester(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := RequesterFrom(r.Context())
	if id == "" {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return "", false
	}
	return id, true
}

// MaxAvailabilityDays bounds one availability report.
const MaxAvailabilityDays = 366

// ---- hotels ----

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	limit := app.DefaultListLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > app.MaxListLimit {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", fmt.Sprintf("limit must be an integer between 1 and %d", app.MaxListLimit))
			return
		}
		limit = l
	}
	hs, err := h.Q.ListHotels(r.Context(), r.URL.Query().Get("location"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]hotelView, 0, len(hs))
	for _, ht := range hs {
		out = append(out, toHotelView(ht))
	}
	writeCached(w, r, map[string]any{"items": out})
}

func (h *Handlers) getHotel(w http.ResponseWriter, r *http.Request) {
	ht, err := h.Q.GetHotel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, toHotelView(ht))
}

func (h *Handlers) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := domain.ParseDay(q.Get("check_in"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := domain.ParseDay(q.Get("check_out"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if n := domain.DaysBetween(start, end); n > MaxAvailabilityDays {
		writeError(w, r, fmt.Errorf("%w: availability range is %d nights, at most %d allowed", domain.ErrValidation, n, MaxAvailabilityDays))
		return
	}
	hotelID := chi.URLParam(r, "id")

	var reports []app.AvailabilityReport
	if rt := q.Get("room_type"); rt != "" {
		rep, err := h.Avail.CheckAvailability(r.Context(), hotelID, rt, start, end)
		if err != nil {
			writeError(w, r, err)
			return
		}
		reports = []app.AvailabilityReport{rep}
	} else {
		reports, err = h.Avail.HotelAvailability(r.Context(), hotelID, start, end)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	out := availabilityResponse{
		HotelID:   hotelID,
		CheckIn:   start.Format(domain.DayLayout),
		CheckOut:  end.Format(domain.DayLayout),
		RoomTypes: make([]roomAvailabilityView, 0, len(reports)),
	}
	for _, rep := range reports {
		out.RoomTypes = append(out.RoomTypes, toRoomAvailabilityView(rep))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) submitRating(w http.ResponseWriter, r *http.Request) {
	user, ok := requireRequester(w, r)
	if !ok {
		return
	}
	var req app.SubmitRatingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UserID = user
	req.HotelID = chi.URLParam(r, "id")
	rt, err := h.Ratings.SubmitRating(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ratingView{HotelID: rt.HotelID, Score: rt.Score, CreatedAt: rt.CreatedAt})
}

// ---- recommendations ----

type recommendRequest struct {
	Location  string   `json:"location"`
	Amenities []string `json:"amenities"`
}

func (h *Handlers) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	scored, err := h.Scores.Recommend(r.Context(), req.Location, req.Amenities)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]recommendationView, 0, len(scored))
	for _, s := range scored {
		out = append(out, recommendationView{Hotel: toHotelView(s.Hotel), Score: s.Score, Breakdown: s.Breakdown})
	}
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": out})
}

// ---- bookings ----

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := requireRequester(w, r)
	if !ok {
		return
	}
	var req app.CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UserID = user
	b, err := h.Bookings.CreateBooking(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/bookings/"+b.ID)
	writeJSON(w, http.StatusCreated, toBookingView(b))
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	user, ok := requireRequester(w, r)
	if !ok {
		return
	}
	bs, err := h.Bookings.ListBookings(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]bookingView, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := requireRequester(w, r)
	if !ok {
		return
	}
	b, err := h.Bookings.GetBooking(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingView(b))
}

func (h *Handlers) cancelBooking(w http.ResponseWriter, r *http.Request) {
	user, ok := requireRequester(w, r)
	if !ok {
		return
	}
	b, err := h.Bookings.CancelBooking(r.Context(), chi.URLParam(r, "id"), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingView(b))
}

// ---- views ----

type roomTypeView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	TotalRooms    int      `json:"total_rooms"`
	MaxGuests     int      `json:"max_guests"`
	PricePerNight float64  `json:"price_per_night"`
	Amenities     []string `json:"amenities"`
}

type hotelView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	Description   string         `json:"description,omitempty"`
	Amenities     []string       `json:"amenities"`
	AverageRating float64        `json:"average_rating"`
	ImageURL      string         `json:"image_url,omitempty"`
	RoomTypes     []roomTypeView `json:"room_types"`
}

type recommendationView struct {
	Hotel     hotelView          `json:"hotel"`
	Score     float64            `json:"score"`
	Breakdown app.ScoreBreakdown `json:"breakdown"`
}

type bookingView struct {
	ID          string     `json:"id"`
	HotelID     string     `json:"hotel_id"`
	RoomTypeID  string     `json:"room_type_id"`
	CheckIn     string     `json:"check_in"`
	CheckOut    string     `json:"check_out"`
	Nights      int        `json:"nights"`
	Guests      int        `json:"guests"`
	Status      string     `json:"status"`
	TotalPrice  float64    `json:"total_price"`
	CreatedAt   time.Time  `json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type ratingView struct {
	HotelID   string    `json:"hotel_id"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

type dayView struct {
	Date       string  `json:"date"`
	Booked     int     `json:"booked"`
	Available  int     `json:"available"`
	TotalRooms int     `json:"total_rooms"`
	Price      float64 `json:"price"`
}

type roomAvailabilityView struct {
	RoomTypeID   string    `json:"room_type_id"`
	RoomTypeName string    `json:"room_type_name"`
	MinAvailable int       `json:"min_available"`
	Days         []dayView `json:"days"`
}

type availabilityResponse struct {
	HotelID   string                 `json:"hotel_id"`
	CheckIn   string                 `json:"check_in"`
	CheckOut  string                 `json:"check_out"`
	RoomTypes []roomAvailabilityView `json:"room_types"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toHotelView(h domain.Hotel) hotelView {
	v := hotelView{
		ID:            h.ID,
		Name:          h.Name,
		Location:      h.Location,
		Description:   h.Description,
		Amenities:     nonNil(h.Amenities),
		AverageRating: h.AverageRating,
		ImageURL:      h.ImageURL,
		RoomTypes:     make([]roomTypeView, 0, len(h.RoomTypes)),
	}
	for _, rt := range h.RoomTypes {
		v.RoomTypes = append(v.RoomTypes, roomTypeView{
			ID:            rt.ID,
			Name:          rt.Name,
			Description:   rt.Description,
			TotalRooms:    rt.Capacity,
			MaxGuests:     rt.MaxGuests,
			PricePerNight: rt.PricePerNight,
			Amenities:     nonNil(rt.Amenities),
		})
	}
	return v
}

func toBookingView(b domain.Booking) bookingView {
	return bookingView{
		ID:          b.ID,
		HotelID:     b.HotelID,
		RoomTypeID:  b.RoomTypeID,
		CheckIn:     b.CheckIn.Format(domain.DayLayout),
		CheckOut:    b.CheckOut.Format(domain.DayLayout),
		Nights:      b.Nights(),
		Guests:      b.Guests,
		Status:      string(b.Status),
		TotalPrice:  b.TotalPrice,
		CreatedAt:   b.CreatedAt,
		CancelledAt: b.CancelledAt,
	}
}

func toRoomAvailabilityView(rep app.AvailabilityReport) roomAvailabilityView {
	v := roomAvailabilityView{
		RoomTypeID:   rep.RoomTypeID,
		RoomTypeName: rep.RoomTypeName,
		MinAvailable: rep.MinAvailable(),
		Days:         make([]dayView, 0, len(rep.Days)),
	}
	for _, d := range rep.Days {
		v.Days = append(v.Days, dayView{
			Date:       d.Date.Format(domain.DayLayout),
			Booked:     d.Booked,
			Available:  d.Available,
			TotalRooms: d.TotalRooms,
			Price:      d.Price,
		})
	}
	return v
}
