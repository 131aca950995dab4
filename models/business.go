package models

import (
	"time"

	"github.com/DeoTime/localys/pricing"
)

type Business struct {
	ID          int                `json:"id"`
	OwnerID     int                `json:"owner_id"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	AvgRating   float64            `json:"avg_rating"`
	ReviewCount int                `json:"review_count"`
	Locations   []BusinessLocation `json:"locations,omitempty"`
	PriceRange  *pricing.Range     `json:"price_range,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// BusinessLocation is one branch of a (possibly multi-branch) business.
type BusinessLocation struct {
	ID         int     `json:"id"`
	BusinessID int     `json:"business_id"`
	Label      string  `json:"label"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

type Item struct {
	ID         int       `json:"id"`
	BusinessID int       `json:"business_id"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	CreatedAt  time.Time `json:"created_at"`
}

type Review struct {
	ID         int       `json:"id"`
	BusinessID int       `json:"business_id"`
	UserID     int       `json:"user_id"`
	Rating     int       `json:"rating"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateReviewRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Body   string `json:"body"`
}
