package domain

import "strings"

type Hotel struct {
	ID            string
	Name          string
	Location      string
	Description   string
	Amenities     []string
	AverageRating float64 // 0.0–5.0
	ImageURL      string
	RoomTypes     []RoomType
}

type RoomType struct {
	ID            string // unique within its hotel
	Name          string
	Description   string
	Capacity      int // total rooms of this type
	MaxGuests     int
	PricePerNight float64
	Amenities     []string
}

// RoomType looks up a room type by id.
func (h Hotel) RoomType(id string) (RoomType, bool) {
	for _, rt := range h.RoomTypes {
		if rt.ID == id {
			return rt, true
		}
	}
	return RoomType{}, false
}

// AmenitySet returns the hotel's amenities normalized for set comparison.
func (h Hotel) AmenitySet() map[string]struct{} {
	return NormalizeAmenities(h.Amenities)
}

// NormalizeAmenities lower-cases, trims and de-duplicates amenity tags.
func NormalizeAmenities(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, a := range in {
		if t := strings.ToLower(strings.TrimSpace(a)); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
