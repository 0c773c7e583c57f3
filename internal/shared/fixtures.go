package shared

import "stayfinder/internal/domain"

type fixtureHotel struct {
	id, name, location, desc string
	rating                   float64
	amenities                []string
	base                     float64 // standard room nightly price
}

var fixtureHotels = []fixtureHotel{
	{"luxury-beach-resort-spa", "Luxury Beach Resort & Spa", "Miami", "Oceanfront resort with a full-service spa.", 4.8,
		[]string{"pool", "beach", "spa", "gym", "restaurant", "bar", "wifi", "room-service"}, 320},
	{"downtown-business-hotel", "Downtown Business Hotel", "New York", "Steps from the financial district.", 4.5,
		[]string{"gym", "restaurant", "business-center", "wifi", "bar", "room-service", "parking"}, 260},
	{"sunset-beach-inn", "Sunset Beach Inn", "Miami", "Small inn on the quiet end of the beach.", 4.2,
		[]string{"pool", "beach", "wifi", "restaurant", "parking"}, 150},
	{"the-grand-plaza", "The Grand Plaza", "New York", "Classic midtown hotel.", 4.7,
		[]string{"gym", "spa", "restaurant", "business-center", "wifi", "room-service", "bar"}, 340},
	{"hollywood-hills-resort", "Hollywood Hills Resort", "Los Angeles", "Hillside resort with city views.", 4.6,
		[]string{"pool", "spa", "gym", "restaurant", "bar", "wifi", "parking"}, 290},
	{"beachfront-paradise", "Beachfront Paradise", "Miami", "Family resort right on the sand.", 4.3,
		[]string{"pool", "beach", "restaurant", "bar", "wifi", "parking"}, 210},
	{"city-lights-hotel", "City Lights Hotel", "Las Vegas", "Tower hotel on the Strip.", 4.9,
		[]string{"pool", "spa", "gym", "restaurant", "bar", "wifi", "room-service", "parking"}, 230},
	{"windy-city-suites", "Windy City Suites", "Chicago", "All-suite hotel near the river.", 4.1,
		[]string{"gym", "restaurant", "business-center", "wifi", "parking"}, 180},
	{"bay-area-lodge", "Bay Area Lodge", "San Francisco", "Lodge close to the waterfront.", 4.2,
		[]string{"gym", "restaurant", "wifi", "business-center", "parking"}, 200},
	{"strip-view-casino-resort", "Strip View Casino Resort", "Las Vegas", "Casino resort overlooking the Strip.", 4.7,
		[]string{"pool", "spa", "gym", "restaurant", "bar", "wifi", "room-service", "parking", "business-center"}, 250},
}

type fixtureRating struct {
	user  string
	score int
}

// fixtureRatings is keyed by index into fixtureHotels.
var fixtureRatings = map[int][]fixtureRating{
	0: {{"user1", 5}, {"user2", 5}},
	1: {{"user1", 4}, {"user3", 5}},
	2: {{"user2", 4}},
	3: {{"user3", 4}},
	4: {{"user4", 5}},
	5: {{"user4", 4}},
	6: {{"user5", 5}},
	7: {{"user5", 4}},
}

// FixtureHotels returns the built-in sample inventory. Every hotel gets
// standard, deluxe and suite room types priced off its base rate.
func FixtureHotels() []domain.Hotel {
	out := make([]domain.Hotel, 0, len(fixtureHotels))
	for _, f := range fixtureHotels {
		out = append(out, domain.Hotel{
			ID:            f.id,
			Name:          f.name,
			Location:      f.location,
			Description:   f.desc,
			Amenities:     append([]string(nil), f.amenities...),
			AverageRating: f.rating,
			RoomTypes: []domain.RoomType{
				{ID: "standard", Name: "Standard Room", Description: "Queen bed", Capacity: 10, MaxGuests: 2, PricePerNight: f.base, Amenities: []string{"wifi", "tv"}},
				{ID: "deluxe", Name: "Deluxe Room", Description: "King bed and sitting area", Capacity: 5, MaxGuests: 3, PricePerNight: f.base * 1.5, Amenities: []string{"wifi", "tv", "minibar"}},
				{ID: "suite", Name: "Suite", Description: "Separate living room", Capacity: 2, MaxGuests: 4, PricePerNight: f.base * 2.5, Amenities: []string{"wifi", "tv", "minibar", "bathtub"}},
			},
		})
	}
	return out
}

// FixtureRatings returns the sample ratings keyed by hotel id.
func FixtureRatings() map[string][]domain.Rating {
	out := make(map[string][]domain.Rating, len(fixtureRatings))
	for i, rs := range fixtureRatings {
		id := fixtureHotels[i].id
		for _, r := range rs {
			out[id] = append(out[id], domain.Rating{UserID: r.user, HotelID: id, Score: r.score})
		}
	}
	return out
}
