package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stayfinder/internal/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type QueryService struct {
	store    domain.InventoryStore
	cache    domain.Cache
	cacheTTL time.Duration
	timeout  time.Duration
}

func NewQueryService(s domain.InventoryStore, c domain.Cache, ttl, storeTimeout time.Duration) *QueryService {
	return &QueryService{store: s, cache: c, cacheTTL: ttl, timeout: storeTimeout}
}

func HotelCacheKey(id string) string { return "hotel:" + id }

func (s *QueryService) GetHotel(ctx context.Context, id string) (domain.Hotel, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Hotel{}, fmt.Errorf("%w: hotel id is required", domain.ErrValidation)
	}
	key := HotelCacheKey(id)
	var h domain.Hotel
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &h); ok {
			return h, nil
		}
	}
	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	h, err := s.store.GetHotel(cctx, id)
	if err != nil {
		return domain.Hotel{}, domain.WrapStorage("get hotel", err)
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, h, int(s.cacheTTL.Seconds()))
	}
	return h, nil
}

// ListHotels filters by location when one is given, otherwise returns the
// first limit hotels by id.
func (s *QueryService) ListHotels(ctx context.Context, location string, limit int) ([]domain.Hotel, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, MaxListLimit)
	}
	location = strings.TrimSpace(location)
	key := fmt.Sprintf("hotels:%s:%d", strings.ToLower(location), limit)
	var out []domain.Hotel
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}

	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	var (
		hs  []domain.Hotel
		err error
	)
	if location == "" {
		hs, err = s.store.ListHotels(cctx, limit)
	} else {
		hs, err = s.store.FindHotelsByLocation(cctx, location)
	}
	if err != nil {
		return nil, domain.WrapStorage("list hotels", err)
	}
	if len(hs) > limit {
		hs = hs[:limit]
	}

	// copy to avoid aliasing the store's backing array
	out = make([]domain.Hotel, len(hs))
	copy(out, hs)

	if b, _ := json.Marshal(out); len(b) < 1_000_000 && s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}
