package app

import (
	"crypto/sha1"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"stayfinder/internal/domain"
)

/********** alias registries **********/

var hotelAliases = map[string][]string{
	"id":          {"id", "hotel_id", "_id"},
	"name":        {"name", "hotel_name", "title"},
	"location":    {"location", "city", "address.city", "location.city"},
	"description": {"description", "summary", "markdown_description"},
	"image":       {"image_url", "image", "main_image_th", "photos.0.url"},
}

var roomAliases = map[string][]string{
	"id":   {"id", "room_type_id", "type", "code"},
	"name": {"name", "room_name", "type"},
	"desc": {"description", "summary"},
}

var ratingAliases = map[string][]string{
	"user":   {"user_id", "userId", "author", "reviewer.id"},
	"score":  {"rating", "score", "stars"},
	"when":   {"created_at", "timestamp", "date"},
	"hotel":  {"hotel_id", "hotelId"},
	"source": {"id", "rating_id"},
}

/********** tiny helpers **********/

// lookupAny: nested lookup with dot paths on maps; numeric parts index slices.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		switch obj := cur.(type) {
		case map[string]any:
			v, ok := obj[part]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(obj) {
				return nil
			}
			cur = obj[i]
		default:
			return nil
		}
	}
	return cur
}

func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "4,5").
func getFloatFlexible(m map[string]any, paths ...string) (float64, bool) {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func getIntFlexible(m map[string]any, paths ...string) (int, bool) {
	f, ok := getFloatFlexible(m, paths...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// firstSliceStrings: accept []any with either strings or {name/url/src}.
func firstSliceStrings(m map[string]any, paths ...string) []string {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, it := range raw {
			switch t := it.(type) {
			case string:
				if t != "" {
					out = append(out, t)
				}
			case map[string]any:
				for _, f := range []string{"name", "url", "src"} {
					if s, ok := t[f].(string); ok && s != "" {
						out = append(out, s)
						break
					}
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstSliceMaps(m map[string]any, paths ...string) []map[string]any {
	for _, k := range paths {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(raw))
		for _, it := range raw {
			if mm, ok := it.(map[string]any); ok {
				out = append(out, mm)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}), "-")
}

func clamp(f, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, f)) }

/********** hotel mapper **********/

// mapHotel turns a catalog payload into a Hotel. fallbackID is used when the
// payload does not carry its own id.
func mapHotel(fallbackID string, p map[string]any) domain.Hotel {
	h := domain.Hotel{
		ID:          firstNonEmptyAlias(p, hotelAliases, "id"),
		Name:        firstNonEmptyAlias(p, hotelAliases, "name"),
		Location:    firstNonEmptyAlias(p, hotelAliases, "location"),
		Description: firstNonEmptyAlias(p, hotelAliases, "description"),
		ImageURL:    firstNonEmptyAlias(p, hotelAliases, "image"),
		Amenities:   firstSliceStrings(p, "amenities", "facilities"),
	}
	if h.ID == "" {
		h.ID = fallbackID
	}
	if f, ok := getFloatFlexible(p, "average_rating", "rating", "stars"); ok {
		h.AverageRating = clamp(f, 0, domain.MaxRatingScore)
	}

	for i, r := range firstSliceMaps(p, "room_types", "rooms") {
		rt := domain.RoomType{
			ID:          firstNonEmptyAlias(r, roomAliases, "id"),
			Name:        firstNonEmptyAlias(r, roomAliases, "name"),
			Description: firstNonEmptyAlias(r, roomAliases, "desc"),
			Amenities:   firstSliceStrings(r, "amenities", "facilities"),
		}
		if rt.ID == "" {
			rt.ID = slug(rt.Name)
		}
		if rt.ID == "" {
			rt.ID = "room-" + strconv.Itoa(i+1)
		}
		rt.Capacity, _ = getIntFlexible(r, "total_rooms", "capacity", "count")
		rt.MaxGuests, _ = getIntFlexible(r, "max_guests", "occupancy", "max_occupancy")
		rt.PricePerNight, _ = getFloatFlexible(r, "price_per_night", "price", "rate")
		if rt.Capacity < 1 {
			log.Warn().Str("hotel_id", h.ID).Str("room_type_id", rt.ID).Int("capacity", rt.Capacity).Msg("room type without rooms skipped")
			continue
		}
		h.RoomTypes = append(h.RoomTypes, rt)
	}
	return h
}

/********** ratings mapper **********/

// mapRatings keeps entries whose score is in 1..5. Anonymous entries get a
// stable synthetic user id so re-seeding does not change the mean.
func mapRatings(hotelID string, in []map[string]any) []domain.Rating {
	out := make([]domain.Rating, 0, len(in))
	for _, r := range in {
		score, ok := getFloatFlexible(r, ratingAliases["score"]...)
		if !ok {
			continue
		}
		n := int(math.Round(score))
		if n < domain.MinRatingScore || n > domain.MaxRatingScore {
			log.Debug().Str("hotel_id", hotelID).Float64("score", score).Msg("rating out of range skipped")
			continue
		}
		rt := domain.Rating{HotelID: hotelID, Score: n}
		if h := firstNonEmptyAlias(r, ratingAliases, "hotel"); h != "" {
			rt.HotelID = h
		}
		rt.UserID = firstNonEmptyAlias(r, ratingAliases, "user")
		if rt.UserID == "" {
			sig := strings.Join([]string{rt.HotelID, firstNonEmptyAlias(r, ratingAliases, "source"), strconv.Itoa(n), strconv.Itoa(len(out))}, "|")
			sum := sha1.Sum([]byte(sig))
			rt.UserID = "anon-" + hex.EncodeToString(sum[:6])
		}
		if s := firstNonEmptyAlias(r, ratingAliases, "when"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				rt.CreatedAt = t.UTC()
			}
		}
		out = append(out, rt)
	}
	return out
}
