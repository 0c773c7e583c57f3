package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

// SeedingService loads hotels and ratings into the store, either from a
// fixture set or from a remote catalog. It runs outside the request path.
type SeedingService struct {
	catalog domain.CatalogClient
	store   domain.InventoryStore
	cache   domain.Cache
}

func NewSeedingService(c domain.CatalogClient, s domain.InventoryStore, cache domain.Cache) *SeedingService {
	return &SeedingService{catalog: c, store: s, cache: cache}
}

// SeedHotel upserts h and appends ratings only when the hotel has none yet,
// so running the seeder twice leaves the collaborative mean unchanged.
func (s *SeedingService) SeedHotel(ctx context.Context, h domain.Hotel, ratings []domain.Rating) error {
	if h.ID == "" {
		return fmt.Errorf("%w: hotel id is required", domain.ErrValidation)
	}
	for _, rt := range h.RoomTypes {
		if rt.Capacity < 1 {
			return fmt.Errorf("%w: room type %q needs a capacity of at least 1", domain.ErrValidation, rt.ID)
		}
	}
	if err := s.store.UpsertHotel(ctx, h); err != nil {
		return fmt.Errorf("upsert hotel %s: %w", h.ID, err)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, HotelCacheKey(h.ID))
	}
	if len(ratings) == 0 {
		return nil
	}

	existing, err := s.store.ListRatings(ctx, h.ID)
	if err != nil {
		return fmt.Errorf("list ratings %s: %w", h.ID, err)
	}
	if len(existing) > 0 {
		log.Debug().Str("hotel_id", h.ID).Int("existing", len(existing)).Msg("ratings already seeded")
		return nil
	}
	for _, r := range ratings {
		r.HotelID = h.ID
		if err := s.store.AppendRating(ctx, r); err != nil {
			return fmt.Errorf("append rating %s: %w", h.ID, err)
		}
	}
	return nil
}

// CatalogIDs lists the hotel ids the remote catalog offers.
func (s *SeedingService) CatalogIDs(ctx context.Context) ([]string, error) {
	if s.catalog == nil {
		return nil, errors.New("catalog client not configured")
	}
	return s.catalog.ListHotelIDs(ctx)
}

// IngestHotel pulls one hotel and its ratings from the catalog. Missing or
// inaccessible hotels are logged and skipped, everything else bubbles up.
func (s *SeedingService) IngestHotel(ctx context.Context, id string) error {
	if s.catalog == nil {
		return errors.New("catalog client not configured")
	}

	// 1) Hotel first; its row must exist before ratings reference it.
	p, err := s.catalog.GetHotel(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			log.Warn().Str("hotel_id", id).Err(err).Msg("catalog hotel skipped")
			if s.cache != nil {
				_ = s.cache.Del(ctx, HotelCacheKey(id))
			}
			return nil
		}
		return err
	}
	h := mapHotel(id, p)

	// 2) Ratings are best-effort on 404/403.
	var ratings []domain.Rating
	raw, rerr := s.catalog.GetRatings(ctx, id)
	switch {
	case rerr == nil:
		ratings = mapRatings(h.ID, raw)
	case errors.Is(rerr, domain.ErrNotFound) || errors.Is(rerr, domain.ErrForbidden):
		log.Info().Str("hotel_id", id).Err(rerr).Msg("catalog ratings unavailable")
	default:
		return rerr
	}

	return s.SeedHotel(ctx, h, ratings)
}
