package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

// Fixed blend weights. Content signal exists for every hotel, collaborative
// signal is sparse, so content dominates.
const (
	TopN = 10

	AmenityWeight = 0.7 // within content: requested-amenity match
	RatingWeight  = 0.3 // within content: hotel's declared average rating

	ContentWeight       = 0.7 // deterministic attribute match
	CollaborativeWeight = 0.3 // community signal

	MaxRating = 5.0
)

type ScoreBreakdown struct {
	Amenity       float64 `json:"amenity"`
	Rating        float64 `json:"rating"`
	Content       float64 `json:"content"`
	Collaborative float64 `json:"collaborative"`
}

type ScoredHotel struct {
	Hotel     domain.Hotel   `json:"hotel"`
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"breakdown"`
}

// AmenityScore is the share of requested amenities the hotel offers; an empty
// request is a full match.
func AmenityScore(hotelAmenities []string, requested map[string]struct{}) float64 {
	if len(requested) == 0 {
		return 1.0
	}
	have := domain.NormalizeAmenities(hotelAmenities)
	hits := 0
	for a := range requested {
		if _, ok := have[a]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(requested))
}

func RatingScore(averageRating float64) float64 { return averageRating / MaxRating }

func ContentScore(amenity, rating float64) float64 {
	return AmenityWeight*amenity + RatingWeight*rating
}

// CollaborativeScore is the plain mean of all ratings scaled to 0..1, or 0
// with no ratings. No recency or sample-size discounting is applied.
func CollaborativeScore(ratings []domain.Rating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Score
	}
	return float64(sum) / float64(len(ratings)) / MaxRating
}

func FinalScore(content, collaborative float64) float64 {
	return ContentWeight*content + CollaborativeWeight*collaborative
}

// Rank orders by score descending then hotel id ascending, and keeps the first n.
func Rank(items []ScoredHotel, n int) []ScoredHotel {
	out := make([]ScoredHotel, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Hotel.ID < out[j].Hotel.ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

type ScoringEngine struct {
	store    domain.InventoryStore
	cache    domain.Cache
	cacheTTL time.Duration
	timeout  time.Duration
	fanout   int
}

func NewScoringEngine(s domain.InventoryStore, c domain.Cache, ttl, storeTimeout time.Duration) *ScoringEngine {
	return &ScoringEngine{store: s, cache: c, cacheTTL: ttl, timeout: storeTimeout, fanout: 8}
}

func (s *ScoringEngine) Recommend(ctx context.Context, location string, amenities []string) ([]ScoredHotel, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: location is required", domain.ErrValidation)
	}
	requested := domain.NormalizeAmenities(amenities)

	start := time.Now()
	key := recommendKey(location, requested)
	var cached []ScoredHotel
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	cctx, cancel := withTimeout(ctx, s.timeout)
	hotels, err := s.store.FindHotelsByLocation(cctx, location)
	cancel()
	if err != nil {
		return nil, domain.WrapStorage("find hotels by location", err)
	}
	if len(hotels) == 0 {
		return []ScoredHotel{}, nil
	}
	sort.SliceStable(hotels, func(i, j int) bool { return hotels[i].ID < hotels[j].ID })

	collab, err := s.collaborativeScores(ctx, hotels)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredHotel, 0, len(hotels))
	for i, h := range hotels {
		b := ScoreBreakdown{
			Amenity:       AmenityScore(h.Amenities, requested),
			Rating:        RatingScore(h.AverageRating),
			Collaborative: collab[i],
		}
		b.Content = ContentScore(b.Amenity, b.Rating)
		scored = append(scored, ScoredHotel{Hotel: h, Score: FinalScore(b.Content, b.Collaborative), Breakdown: b})
	}
	out := Rank(scored, TopN)

	observability.ObserveRecommend(len(out), time.Since(start))
	log.Debug().
		Str("location", location).
		Int("candidates", len(hotels)).
		Int("returned", len(out)).
		Msg("recommendation computed")

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// collaborativeScores fetches ratings per hotel with bounded concurrency;
// result[i] belongs to hotels[i].
func (s *ScoringEngine) collaborativeScores(ctx context.Context, hotels []domain.Hotel) ([]float64, error) {
	out := make([]float64, len(hotels))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, h := range hotels {
		i, id := i, h.ID
		g.Go(func() error {
			cctx, cancel := withTimeout(gctx, s.timeout)
			defer cancel()
			rs, err := s.store.ListRatings(cctx, id)
			if err != nil {
				return domain.WrapStorage("list ratings", err)
			}
			out[i] = CollaborativeScore(rs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func recommendKey(location string, requested map[string]struct{}) string {
	tags := make([]string, 0, len(requested))
	for a := range requested {
		tags = append(tags, a)
	}
	sort.Strings(tags)
	return fmt.Sprintf("reco:%s:%s", strings.ToLower(location), strings.Join(tags, ","))
}
