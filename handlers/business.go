package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/DeoTime/localys/cache"
	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"
	"github.com/DeoTime/localys/pricing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BusinessHandler struct {
	db     *sql.DB
	cache  *cache.Service
	logger *zap.Logger
}

func NewBusinessHandler(db *sql.DB, cache *cache.Service, logger *zap.Logger) *BusinessHandler {
	return &BusinessHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

func (h *BusinessHandler) GetBusiness(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "GetBusiness")
	defer span.End()

	businessID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid business ID"})
		return
	}
	span.SetAttributes(attribute.Int("business.id", businessID))

	var b models.Business
	err = h.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, category, avg_rating, review_count, created_at FROM businesses WHERE id = $1",
		businessID,
	).Scan(&b.ID, &b.OwnerID, &b.Name, &b.Category, &b.AvgRating, &b.ReviewCount, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch business", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	locations, err := h.loadLocations(c, businessID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch locations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	b.Locations = locations

	// The price range is derived from item prices on read; never stored.
	prices, err := h.loadItemPrices(c, businessID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch item prices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if r, ok := pricing.RangeFor(prices); ok {
		b.PriceRange = &r
	}

	c.JSON(http.StatusOK, b)
}

func (h *BusinessHandler) GetBusinessVideos(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "GetBusinessVideos")
	defer span.End()

	businessID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid business ID"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT v.id, v.business_id, v.caption, v.video_url, v.boost, v.views,
		        (SELECT COUNT(*) FROM video_likes l WHERE l.video_id = v.id), v.created_at
		   FROM videos v WHERE v.business_id = $1 ORDER BY v.created_at DESC`,
		businessID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch videos", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.BusinessID, &v.Caption, &v.VideoURL, &v.Boost, &v.Views, &v.Likes, &v.CreatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan video", zap.Error(err))
			continue
		}
		videos = append(videos, v)
	}

	span.SetAttributes(attribute.Int("videos.count", len(videos)))
	c.JSON(http.StatusOK, videos)
}

func (h *BusinessHandler) ListItems(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "ListItems")
	defer span.End()

	businessID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid business ID"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, business_id, name, price, created_at FROM items WHERE business_id = $1 ORDER BY id",
		businessID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch items", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.BusinessID, &item.Name, &item.Price, &item.CreatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, items)
}

// CreateReview records a rating, refreshes the business's denormalized
// rating columns, and invalidates its cached search metrics.
func (h *BusinessHandler) CreateReview(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "CreateReview")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	businessID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid business ID"})
		return
	}

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("business.id", businessID),
		attribute.Int("review.rating", req.Rating),
	)

	var review models.Review
	err = h.db.QueryRowContext(ctx,
		"INSERT INTO reviews (business_id, user_id, rating, body) VALUES ($1, $2, $3, $4) RETURNING id, business_id, user_id, rating, body, created_at",
		businessID, userID, req.Rating, req.Body,
	).Scan(&review.ID, &review.BusinessID, &review.UserID, &review.Rating, &review.Body, &review.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create review", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	_, err = h.db.ExecContext(ctx,
		`UPDATE businesses
		    SET avg_rating = (SELECT AVG(rating) FROM reviews WHERE business_id = $1),
		        review_count = (SELECT COUNT(*) FROM reviews WHERE business_id = $1)
		  WHERE id = $1`,
		businessID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to refresh business rating", zap.Error(err))
	}

	if err := h.cache.Invalidate(ctx, cache.PrefixMetrics(businessID)); err != nil {
		h.logger.Warn("Failed to invalidate metrics cache", zap.Int("business_id", businessID), zap.Error(err))
	}

	h.logger.Info("Review created", zap.Int("business_id", businessID), zap.Int("rating", req.Rating))
	c.JSON(http.StatusCreated, review)
}

func (h *BusinessHandler) loadLocations(c *gin.Context, businessID int) ([]models.BusinessLocation, error) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT id, business_id, label, lat, lng FROM business_locations WHERE business_id = $1 ORDER BY id",
		businessID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.BusinessLocation
	for rows.Next() {
		var loc models.BusinessLocation
		if err := rows.Scan(&loc.ID, &loc.BusinessID, &loc.Label, &loc.Lat, &loc.Lng); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (h *BusinessHandler) loadItemPrices(c *gin.Context, businessID int) ([]float64, error) {
	rows, err := h.db.QueryContext(c.Request.Context(),
		"SELECT price FROM items WHERE business_id = $1",
		businessID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
