package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/DeoTime/localys/cache"
	"github.com/DeoTime/localys/pricing"
	"github.com/DeoTime/localys/search"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const metricsTTL = 5 * time.Minute

type SearchHandler struct {
	db     *sql.DB
	cache  *cache.Service
	logger *zap.Logger
}

func NewSearchHandler(db *sql.DB, cache *cache.Service, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// businessMetrics is the memoized per-business derived data used by search.
type businessMetrics struct {
	Rating      float64        `json:"rating"`
	ReviewCount int            `json:"review_count"`
	PriceRange  *pricing.Range `json:"price_range,omitempty"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "Search")
	defer span.End()

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing query"})
		return
	}

	filters, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	terms := search.Expand(query)
	span.SetAttributes(
		attribute.String("search.query", query),
		attribute.Int("search.terms", len(terms)),
	)

	switch c.DefaultQuery("type", "videos") {
	case "videos":
		h.searchVideos(ctx, c, terms, filters)
	case "businesses":
		h.searchBusinesses(ctx, c, terms, filters)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid search type"})
	}
}

func (h *SearchHandler) searchVideos(ctx context.Context, c *gin.Context, terms []string, filters search.Filters) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT v.id, v.business_id, v.caption, v.video_url, b.category, v.boost, v.views, v.created_at
		   FROM videos v JOIN businesses b ON b.id = v.business_id
		  ORDER BY v.id`,
	)
	if err != nil {
		h.logger.Error("Failed to load video candidates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	var candidates []search.Video
	for rows.Next() {
		var v search.Video
		if err := rows.Scan(&v.ID, &v.BusinessID, &v.Caption, &v.VideoURL, &v.Category, &v.Boost, &v.Views, &v.CreatedAt); err != nil {
			h.logger.Error("Failed to scan video candidate", zap.Error(err))
			continue
		}
		if !search.MatchVideo(v, terms) {
			continue
		}
		metrics, err := h.metricsFor(ctx, v.BusinessID)
		if err != nil {
			h.logger.Error("Failed to load business metrics", zap.Int("business_id", v.BusinessID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		v.Rating = metrics.Rating
		v.PriceRange = metrics.PriceRange
		candidates = append(candidates, v)
	}

	results := search.RankVideos(search.FilterVideos(candidates, filters), time.Now())
	c.JSON(http.StatusOK, gin.H{"videos": results})
}

func (h *SearchHandler) searchBusinesses(ctx context.Context, c *gin.Context, terms []string, filters search.Filters) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT b.id, b.name, b.category,
		        COALESCE(l.lat, 0), COALESCE(l.lng, 0), l.id IS NOT NULL
		   FROM businesses b
		   LEFT JOIN LATERAL (
		        SELECT id, lat, lng FROM business_locations WHERE business_id = b.id ORDER BY id LIMIT 1
		   ) l ON TRUE
		  ORDER BY b.id`,
	)
	if err != nil {
		h.logger.Error("Failed to load business candidates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	var candidates []search.Business
	for rows.Next() {
		var b search.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &b.Lat, &b.Lng, &b.HasLocation); err != nil {
			h.logger.Error("Failed to scan business candidate", zap.Error(err))
			continue
		}
		if !search.MatchBusiness(b, terms) {
			continue
		}
		metrics, err := h.metricsFor(ctx, b.ID)
		if err != nil {
			h.logger.Error("Failed to load business metrics", zap.Int("business_id", b.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		b.Rating = metrics.Rating
		b.ReviewCount = metrics.ReviewCount
		b.PriceRange = metrics.PriceRange
		candidates = append(candidates, b)
	}

	results := search.RankBusinesses(search.FilterBusinesses(candidates, filters), filters)
	c.JSON(http.StatusOK, gin.H{"businesses": results})
}

// metricsFor computes a business's derived search metrics, memoized for a
// few minutes. Concurrent recomputation of the same key races harmlessly.
func (h *SearchHandler) metricsFor(ctx context.Context, businessID int) (businessMetrics, error) {
	var metrics businessMetrics
	prefix := cache.PrefixMetrics(businessID)
	if hit, err := h.cache.Get(ctx, prefix, "v1", &metrics); err == nil && hit {
		return metrics, nil
	}

	err := h.db.QueryRowContext(ctx,
		"SELECT avg_rating, review_count FROM businesses WHERE id = $1",
		businessID,
	).Scan(&metrics.Rating, &metrics.ReviewCount)
	if err != nil {
		return businessMetrics{}, err
	}

	rows, err := h.db.QueryContext(ctx, "SELECT price FROM items WHERE business_id = $1", businessID)
	if err != nil {
		return businessMetrics{}, err
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return businessMetrics{}, err
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return businessMetrics{}, err
	}

	if r, ok := pricing.RangeFor(prices); ok {
		metrics.PriceRange = &r
	}

	if err := h.cache.Set(ctx, prefix, "v1", metrics, metricsTTL); err != nil {
		h.logger.Warn("Failed to cache business metrics", zap.Int("business_id", businessID), zap.Error(err))
	}

	return metrics, nil
}

func parseFilters(c *gin.Context) (search.Filters, error) {
	var f search.Filters
	f.Category = c.Query("category")

	var err error
	if v := c.Query("min_rating"); v != "" {
		if f.MinRating, err = strconv.ParseFloat(v, 64); err != nil {
			return f, errInvalidParam("min_rating")
		}
	}

	priceMin, priceMax := c.Query("price_min"), c.Query("price_max")
	if priceMin != "" || priceMax != "" {
		f.HasPrice = true
		f.PriceMax = 1e9
		if priceMin != "" {
			if f.PriceMin, err = strconv.ParseFloat(priceMin, 64); err != nil {
				return f, errInvalidParam("price_min")
			}
		}
		if priceMax != "" {
			if f.PriceMax, err = strconv.ParseFloat(priceMax, 64); err != nil {
				return f, errInvalidParam("price_max")
			}
		}
	}

	if v := c.Query("lat"); v != "" {
		if f.Lat, err = strconv.ParseFloat(v, 64); err != nil {
			return f, errInvalidParam("lat")
		}
	}
	if v := c.Query("lng"); v != "" {
		if f.Lng, err = strconv.ParseFloat(v, 64); err != nil {
			return f, errInvalidParam("lng")
		}
	}
	if v := c.Query("radius_km"); v != "" {
		if f.RadiusKm, err = strconv.ParseFloat(v, 64); err != nil {
			return f, errInvalidParam("radius_km")
		}
	}

	return f, nil
}

type paramError string

func (e paramError) Error() string { return "Invalid " + string(e) }

func errInvalidParam(name string) error { return paramError(name) }
