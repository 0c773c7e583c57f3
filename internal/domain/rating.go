package domain

import "time"

// Rating is a single user score for a hotel. Ratings are append-only.
type Rating struct {
	UserID    string
	HotelID   string
	Score     int // 1–5
	CreatedAt time.Time
}

const (
	MinRatingScore = 1
	MaxRatingScore = 5
)
