package search

import (
	"sort"
	"strings"
	"time"

	"github.com/DeoTime/localys/geo"
	"github.com/DeoTime/localys/pricing"
)

// Video is a ranked feed candidate.
type Video struct {
	ID         int            `json:"id"`
	BusinessID int            `json:"business_id"`
	Caption    string         `json:"caption"`
	VideoURL   string         `json:"video_url"`
	Category   string         `json:"category"`
	Rating     float64        `json:"rating"`
	Boost      int            `json:"boost"`
	Views      int            `json:"views"`
	CreatedAt  time.Time      `json:"created_at"`
	PriceRange *pricing.Range `json:"price_range,omitempty"`
}

// Business is a ranked discovery candidate. HasLocation distinguishes a
// business at (0,0) from one with no recorded location.
type Business struct {
	ID          int            `json:"id"`
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Rating      float64        `json:"rating"`
	ReviewCount int            `json:"review_count"`
	Lat         float64        `json:"lat"`
	Lng         float64        `json:"lng"`
	HasLocation bool           `json:"-"`
	PriceRange  *pricing.Range `json:"price_range,omitempty"`
}

// Filters holds the active search constraints. Zero values mean "off",
// except the price band which is explicit via HasPrice.
type Filters struct {
	Category  string
	MinRating float64
	HasPrice  bool
	PriceMin  float64
	PriceMax  float64
	Lat       float64
	Lng       float64
	RadiusKm  float64
}

// Ranking weights. Rating dominates; boost is the paid promotion signal,
// views and review counts are capped so whales don't drown everything else.
const (
	ratingWeight   = 2.0
	boostWeight    = 0.5
	viewsCap       = 10000
	viewsWeight    = 0.0001
	reviewCap      = 50
	reviewWeight   = 0.04
	proximityMaxKm = 20.0
	proximityMax   = 2.0
)

// MatchVideo reports whether any expanded term appears in the video's
// caption or category.
func MatchVideo(v Video, terms []string) bool {
	caption := strings.ToLower(v.Caption)
	category := strings.ToLower(v.Category)
	for _, term := range terms {
		if strings.Contains(caption, term) || strings.Contains(category, term) {
			return true
		}
	}
	return false
}

// MatchBusiness reports whether any expanded term appears in the business
// name or category.
func MatchBusiness(b Business, terms []string) bool {
	name := strings.ToLower(b.Name)
	category := strings.ToLower(b.Category)
	for _, term := range terms {
		if strings.Contains(name, term) || strings.Contains(category, term) {
			return true
		}
	}
	return false
}

// FilterVideos applies the active filters as a predicate chain. A candidate
// survives only if it passes every active filter. Candidates without price
// data are excluded under an active price filter; the same policy applies
// to businesses.
func FilterVideos(videos []Video, f Filters) []Video {
	out := videos[:0:0]
	for _, v := range videos {
		if f.Category != "" && !strings.EqualFold(v.Category, f.Category) {
			continue
		}
		if f.MinRating > 0 && v.Rating < f.MinRating {
			continue
		}
		if f.HasPrice {
			if v.PriceRange == nil || !v.PriceRange.Overlaps(f.PriceMin, f.PriceMax) {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}

// FilterBusinesses applies the active filters, including the geo-radius
// constraint when a radius is set.
func FilterBusinesses(businesses []Business, f Filters) []Business {
	out := businesses[:0:0]
	for _, b := range businesses {
		if f.Category != "" && !strings.EqualFold(b.Category, f.Category) {
			continue
		}
		if f.MinRating > 0 && b.Rating < f.MinRating {
			continue
		}
		if f.HasPrice {
			if b.PriceRange == nil || !b.PriceRange.Overlaps(f.PriceMin, f.PriceMax) {
				continue
			}
		}
		if f.RadiusKm > 0 {
			if !b.HasLocation || geo.DistanceKm(f.Lat, f.Lng, b.Lat, b.Lng) > f.RadiusKm {
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

// VideoScore is the additive ranking score for a video candidate.
func VideoScore(v Video, now time.Time) float64 {
	score := v.Rating * ratingWeight
	score += float64(v.Boost) * boostWeight

	views := v.Views
	if views > viewsCap {
		views = viewsCap
	}
	score += float64(views) * viewsWeight

	age := now.Sub(v.CreatedAt)
	switch {
	case age < 7*24*time.Hour:
		score += 2.0
	case age < 30*24*time.Hour:
		score += 1.0
	}

	return score
}

// BusinessScore is the additive ranking score for a business candidate.
// When the caller supplied a location, nearby businesses get a bonus that
// decays linearly to zero at proximityMaxKm.
func BusinessScore(b Business, f Filters) float64 {
	score := b.Rating * ratingWeight

	reviews := b.ReviewCount
	if reviews > reviewCap {
		reviews = reviewCap
	}
	score += float64(reviews) * reviewWeight

	if (f.Lat != 0 || f.Lng != 0) && b.HasLocation {
		d := geo.DistanceKm(f.Lat, f.Lng, b.Lat, b.Lng)
		if d < proximityMaxKm {
			score += proximityMax * (1 - d/proximityMaxKm)
		}
	}

	return score
}

// RankVideos sorts candidates by descending score. The sort is stable, so
// ties keep their input order.
func RankVideos(videos []Video, now time.Time) []Video {
	sort.SliceStable(videos, func(i, j int) bool {
		return VideoScore(videos[i], now) > VideoScore(videos[j], now)
	})
	return videos
}

// RankBusinesses sorts candidates by descending score, stable on ties.
func RankBusinesses(businesses []Business, f Filters) []Business {
	sort.SliceStable(businesses, func(i, j int) bool {
		return BusinessScore(businesses[i], f) > BusinessScore(businesses[j], f)
	})
	return businesses
}
