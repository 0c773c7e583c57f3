package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

type SubmitRatingRequest struct {
	UserID  string `json:"-" validate:"required"`
	HotelID string `json:"-" validate:"required"`
	Score   int    `json:"score" validate:"required,gte=1,lte=5"`
}

// RatingService appends user ratings. Ratings are never edited in place.
type RatingService struct {
	store   domain.InventoryStore
	timeout time.Duration
	now     func() time.Time
}

func NewRatingService(s domain.InventoryStore, storeTimeout time.Duration) *RatingService {
	return &RatingService{store: s, timeout: storeTimeout, now: time.Now}
}

func (s *RatingService) SubmitRating(ctx context.Context, req SubmitRatingRequest) (domain.Rating, error) {
	if err := validateStruct(req); err != nil {
		return domain.Rating{}, err
	}
	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.store.GetHotel(cctx, req.HotelID); err != nil {
		return domain.Rating{}, domain.WrapStorage("get hotel", err)
	}
	r := domain.Rating{
		UserID:    req.UserID,
		HotelID:   req.HotelID,
		Score:     req.Score,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AppendRating(cctx, r); err != nil {
		return domain.Rating{}, domain.WrapStorage("append rating", err)
	}
	log.Debug().Str("hotel_id", r.HotelID).Int("score", r.Score).Msg("rating stored")
	return r, nil
}
