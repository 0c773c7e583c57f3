package app

import (
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestMapHotel_AliasesAndRooms(t *testing.T) {
	p := decode(t, `{
		"hotel_name": "Casa Azul",
		"address": {"city": "Lisbon"},
		"stars": "4,5",
		"photos": [{"url": "https://img/1.jpg"}],
		"facilities": [{"name": "Pool"}, "wifi"],
		"rooms": [
			{"room_name": "Junior Suite", "count": 3, "occupancy": 2, "price": "180.5"},
			{"code": "dbl", "capacity": -1, "rate": 90},
			{"code": "twin", "capacity": 0},
			{"code": "fam", "capacity": 2, "rate": 140}
		]
	}`)
	h := mapHotel("fallback-1", p)

	if h.ID != "fallback-1" || h.Name != "Casa Azul" || h.Location != "Lisbon" {
		t.Fatalf("identity: %+v", h)
	}
	if h.AverageRating != 4.5 || h.ImageURL != "https://img/1.jpg" {
		t.Fatalf("rating/image: %v %q", h.AverageRating, h.ImageURL)
	}
	if strings.Join(h.Amenities, ",") != "Pool,wifi" {
		t.Fatalf("amenities: %v", h.Amenities)
	}
	if len(h.RoomTypes) != 2 {
		t.Fatalf("rooms: %+v", h.RoomTypes)
	}
	jr := h.RoomTypes[0]
	if jr.ID != "junior-suite" || jr.Capacity != 3 || jr.MaxGuests != 2 || jr.PricePerNight != 180.5 {
		t.Fatalf("junior suite: %+v", jr)
	}
	// rooms without capacity are dropped
	if fam := h.RoomTypes[1]; fam.ID != "fam" || fam.Capacity != 2 || fam.PricePerNight != 140 {
		t.Fatalf("second kept room: %+v", fam)
	}
}

func TestMapHotel_RatingClamped(t *testing.T) {
	h := mapHotel("x", decode(t, `{"id": "h9", "average_rating": 7}`))
	if h.ID != "h9" || h.AverageRating != 5 {
		t.Fatalf("got %+v", h)
	}
}

func TestMapRatings_FiltersAndSynthesizesUsers(t *testing.T) {
	in := []map[string]any{
		decode(t, `{"user_id": "u1", "rating": 4.6, "created_at": "2024-05-01T10:00:00Z"}`),
		decode(t, `{"score": 0}`),
		decode(t, `{"stars": "6"}`),
		decode(t, `{"id": "r-7", "stars": 2}`),
		decode(t, `{"author": "no score"}`),
	}
	got := mapRatings("h1", in)
	if len(got) != 2 {
		t.Fatalf("kept %d ratings: %+v", len(got), got)
	}
	if got[0].UserID != "u1" || got[0].Score != 5 || got[0].CreatedAt.IsZero() {
		t.Fatalf("first: %+v", got[0])
	}
	if !strings.HasPrefix(got[1].UserID, "anon-") || got[1].Score != 2 || got[1].HotelID != "h1" {
		t.Fatalf("anonymous: %+v", got[1])
	}
	again := mapRatings("h1", in)
	if again[1].UserID != got[1].UserID {
		t.Fatal("synthetic user id is not stable")
	}
}

func TestLookupAny_Paths(t *testing.T) {
	m := decode(t, `{"a": {"b": [{"c": "deep"}]}}`)
	if got := lookupStr(m, "a.b.0.c"); got != "deep" {
		t.Fatalf("got %q", got)
	}
	if lookupAny(m, "a.b.5.c") != nil || lookupAny(m, "a.x") != nil {
		t.Fatal("missing paths should be nil")
	}
}
