package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"stayfinder/internal/app"
	"stayfinder/internal/domain"
	"stayfinder/internal/shared"
)

type fakeCatalog struct {
	hotels   map[string]map[string]any
	ratings  map[string][]map[string]any
	hotelErr map[string]error
	rateErr  map[string]error
}

func (c *fakeCatalog) ListHotelIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(c.hotels))
	for id := range c.hotels {
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *fakeCatalog) GetHotel(ctx context.Context, id string) (map[string]any, error) {
	if err := c.hotelErr[id]; err != nil {
		return nil, err
	}
	h, ok := c.hotels[id]
	if !ok {
		return nil, fmt.Errorf("%w: hotel %s", domain.ErrNotFound, id)
	}
	return h, nil
}

func (c *fakeCatalog) GetRatings(ctx context.Context, id string) ([]map[string]any, error) {
	if err := c.rateErr[id]; err != nil {
		return nil, err
	}
	return c.ratings[id], nil
}

func TestSeedHotel_IdempotentRatingsAndCacheInvalidation(t *testing.T) {
	store := newStore(t)
	cache := &fakeCache{}
	svc := app.NewSeedingService(nil, store, cache)
	ctx := context.Background()

	h := shared.FixtureHotels()[0]
	rs := shared.FixtureRatings()[h.ID]
	for i := 0; i < 2; i++ {
		if err := svc.SeedHotel(ctx, h, rs); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	got, err := store.ListRatings(ctx, h.ID)
	if err != nil || len(got) != len(rs) {
		t.Fatalf("ratings after reseed = %d (%v), want %d", len(got), err, len(rs))
	}
	if cache.dels != 2 {
		t.Fatalf("cache dels = %d, want 2", cache.dels)
	}

	bad := domain.Hotel{ID: "neg", RoomTypes: []domain.RoomType{{ID: "x", Capacity: -1}}}
	if err := svc.SeedHotel(ctx, bad, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("negative capacity: %v", err)
	}
	zero := domain.Hotel{ID: "zero", RoomTypes: []domain.RoomType{{ID: "x", Capacity: 0}}}
	if err := svc.SeedHotel(ctx, zero, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero capacity: %v", err)
	}
	if err := svc.SeedHotel(ctx, domain.Hotel{}, nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("missing id: %v", err)
	}
}

func TestSeedFixtures_LoadsEveryHotel(t *testing.T) {
	store := newStore(t)
	svc := app.NewSeedingService(nil, store, nil)
	ratings := shared.FixtureRatings()
	for _, h := range shared.FixtureHotels() {
		if err := svc.SeedHotel(context.Background(), h, ratings[h.ID]); err != nil {
			t.Fatalf("seed %s: %v", h.ID, err)
		}
	}
	q := app.NewQueryService(store, nil, time.Minute, time.Second)
	miami, err := q.ListHotels(context.Background(), "miami", 0)
	if err != nil || len(miami) != 3 {
		t.Fatalf("miami hotels = %d (%v)", len(miami), err)
	}
	for _, h := range miami {
		if len(h.RoomTypes) != 3 {
			t.Fatalf("%s room types = %d", h.ID, len(h.RoomTypes))
		}
	}
}

func TestIngestHotel(t *testing.T) {
	cat := &fakeCatalog{
		hotels: map[string]map[string]any{
			"c1": {"name": "Catalog One", "city": "Porto", "rooms": []any{
				map[string]any{"id": "std", "total_rooms": float64(4), "max_guests": float64(2), "price_per_night": float64(80)},
			}},
			"c2": {"name": "Catalog Two", "city": "Porto"},
		},
		ratings: map[string][]map[string]any{
			"c1": {{"user_id": "u1", "rating": float64(5)}, {"user_id": "u2", "rating": float64(3)}},
		},
		hotelErr: map[string]error{"gone": fmt.Errorf("%w: 404", domain.ErrNotFound)},
		rateErr:  map[string]error{"c2": fmt.Errorf("%w: 403", domain.ErrForbidden)},
	}
	store := newStore(t)
	svc := app.NewSeedingService(cat, store, nil)
	ctx := context.Background()

	for _, id := range []string{"c1", "c2", "gone"} {
		if err := svc.IngestHotel(ctx, id); err != nil {
			t.Fatalf("ingest %s: %v", id, err)
		}
	}
	h, err := store.GetHotel(ctx, "c1")
	if err != nil || h.Location != "Porto" || len(h.RoomTypes) != 1 || h.RoomTypes[0].Capacity != 4 {
		t.Fatalf("c1: %+v %v", h, err)
	}
	if rs, _ := store.ListRatings(ctx, "c1"); len(rs) != 2 {
		t.Fatalf("c1 ratings = %d", len(rs))
	}
	if _, err := store.GetHotel(ctx, "c2"); err != nil {
		t.Fatalf("c2 should be stored without ratings: %v", err)
	}
	if _, err := store.GetHotel(ctx, "gone"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("gone should be skipped: %v", err)
	}

	cat.hotelErr["boom"] = errors.New("catalog 500")
	if err := svc.IngestHotel(ctx, "boom"); err == nil {
		t.Fatal("transport errors must bubble up")
	}

	ids, err := svc.CatalogIDs(ctx)
	if err != nil || len(ids) != 2 {
		t.Fatalf("ids: %v %v", ids, err)
	}
	if _, err := app.NewSeedingService(nil, store, nil).CatalogIDs(ctx); err == nil {
		t.Fatal("missing catalog should error")
	}
}
