package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/DeoTime/localys/cache"
	"github.com/DeoTime/localys/kafka"
	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const feedPageSize = 20

type VideoHandler struct {
	db       *sql.DB
	cache    *cache.Service
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewVideoHandler(db *sql.DB, cache *cache.Service, producer sarama.SyncProducer, topic string, logger *zap.Logger) *VideoHandler {
	return &VideoHandler{
		db:       db,
		cache:    cache,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

func (h *VideoHandler) CreateVideo(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "CreateVideo")
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

	var req models.CreateVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Only the owner may post under a business.
	var ownerID int
	err = h.db.QueryRowContext(ctx, "SELECT owner_id FROM businesses WHERE id = $1", businessID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Business not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to fetch business owner", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if ownerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the business owner"})
		return
	}

	var video models.Video
	err = h.db.QueryRowContext(ctx,
		"INSERT INTO videos (business_id, caption, video_url) VALUES ($1, $2, $3) RETURNING id, business_id, caption, video_url, boost, views, created_at",
		businessID, req.Caption, req.VideoURL,
	).Scan(&video.ID, &video.BusinessID, &video.Caption, &video.VideoURL, &video.Boost, &video.Views, &video.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create video", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.cache.Invalidate(ctx, cache.PrefixFeed); err != nil {
		h.logger.Warn("Failed to invalidate feed cache", zap.Error(err))
	}

	span.SetAttributes(attribute.Int("video.id", video.ID))
	h.logger.Info("Video created", zap.Int("video_id", video.ID), zap.Int("business_id", video.BusinessID))
	c.JSON(http.StatusCreated, video)
}

// Feed returns a page of recent videos weighted by boost. Pages are cached
// briefly; concurrent recomputation races are harmless since the value is a
// pure function of the same rows.
func (h *VideoHandler) Feed(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "Feed")
	defer span.End()

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}

	cacheKey := strconv.Itoa(page)
	var videos []models.Video
	if hit, err := h.cache.Get(ctx, cache.PrefixFeed, cacheKey, &videos); err == nil && hit {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		c.JSON(http.StatusOK, videos)
		return
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	rows, err := h.db.QueryContext(ctx,
		`SELECT v.id, v.business_id, v.caption, v.video_url, v.boost, v.views,
		        (SELECT COUNT(*) FROM video_likes l WHERE l.video_id = v.id), v.created_at
		   FROM videos v
		  ORDER BY v.boost DESC, v.created_at DESC
		  LIMIT $1 OFFSET $2`,
		feedPageSize, page*feedPageSize,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch feed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	videos = []models.Video{}
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.BusinessID, &v.Caption, &v.VideoURL, &v.Boost, &v.Views, &v.Likes, &v.CreatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan video", zap.Error(err))
			continue
		}
		videos = append(videos, v)
	}

	if err := h.cache.Set(ctx, cache.PrefixFeed, cacheKey, videos, time.Minute); err != nil {
		h.logger.Warn("Failed to cache feed page", zap.Error(err))
	}

	span.SetAttributes(attribute.Int("videos.count", len(videos)))
	c.JSON(http.StatusOK, videos)
}

// RecordView bumps the view counter. Unauthenticated and fire-and-forget
// from the player, so a missing video is still a 404 but nothing else can
// fail loudly.
func (h *VideoHandler) RecordView(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "RecordView")
	defer span.End()

	videoID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid video ID"})
		return
	}

	result, err := h.db.ExecContext(ctx, "UPDATE videos SET views = views + 1 WHERE id = $1", videoID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to record view", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ToggleLike likes the video, or unlikes it when already liked. The unique
// constraint on (video_id, user_id) makes concurrent double-likes collapse
// into one row.
func (h *VideoHandler) ToggleLike(c *gin.Context) {
	h.toggleReaction(c, "video_likes", "ToggleLike")
}

func (h *VideoHandler) ToggleBookmark(c *gin.Context) {
	h.toggleReaction(c, "video_bookmarks", "ToggleBookmark")
}

func (h *VideoHandler) toggleReaction(c *gin.Context, table, spanName string) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), spanName)
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	videoID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid video ID"})
		return
	}
	span.SetAttributes(attribute.Int("video.id", videoID))

	result, err := h.db.ExecContext(ctx,
		"DELETE FROM "+table+" WHERE video_id = $1 AND user_id = $2",
		videoID, userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to toggle reaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if deleted, _ := result.RowsAffected(); deleted > 0 {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}

	_, err = h.db.ExecContext(ctx,
		"INSERT INTO "+table+" (video_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		videoID, userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to toggle reaction", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active": true})
}

func (h *VideoHandler) CreateComment(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "CreateComment")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	videoID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid video ID"})
		return
	}

	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var comment models.Comment
	err = h.db.QueryRowContext(ctx,
		"INSERT INTO comments (video_id, user_id, body) VALUES ($1, $2, $3) RETURNING id, video_id, user_id, body, created_at",
		videoID, userID, req.Body,
	).Scan(&comment.ID, &comment.VideoID, &comment.UserID, &comment.Body, &comment.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create comment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("comment.id", comment.ID))
	c.JSON(http.StatusCreated, comment)
}

func (h *VideoHandler) ListComments(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "ListComments")
	defer span.End()

	videoID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid video ID"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, video_id, user_id, body, created_at FROM comments WHERE video_id = $1 ORDER BY created_at",
		videoID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch comments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var comment models.Comment
		if err := rows.Scan(&comment.ID, &comment.VideoID, &comment.UserID, &comment.Body, &comment.CreatedAt); err != nil {
			span.RecordError(err)
			continue
		}
		comments = append(comments, comment)
	}

	c.JSON(http.StatusOK, comments)
}

// Boost spends coins to raise a video's promotion multiplier. The balance
// decrement is a conditional update so concurrent boosts can't overdraw.
func (h *VideoHandler) Boost(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "Boost")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	videoID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid video ID"})
		return
	}

	var req models.BoostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.Int("video.id", videoID),
		attribute.Int("boost.coins", req.Coins),
	)

	result, err := h.db.ExecContext(ctx,
		"UPDATE users SET coin_balance = coin_balance - $1 WHERE id = $2 AND coin_balance >= $1",
		req.Coins, userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to debit coins", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient coin balance"})
		return
	}

	var boost int
	err = h.db.QueryRowContext(ctx,
		"UPDATE videos SET boost = boost + $1 WHERE id = $2 RETURNING boost",
		req.Coins, videoID,
	).Scan(&boost)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Refund the debit; the video never existed.
			_, _ = h.db.ExecContext(ctx, "UPDATE users SET coin_balance = coin_balance + $1 WHERE id = $2", req.Coins, userID)
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		span.RecordError(err)
		h.logger.Error("Failed to boost video", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.cache.Invalidate(ctx, cache.PrefixFeed); err != nil {
		h.logger.Warn("Failed to invalidate feed cache", zap.Error(err))
	}

	event := models.OrderEvent{
		EventType: models.EventVideoBoosted,
		UserID:    userID,
		VideoID:   videoID,
	}
	if err := kafka.PublishEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
		h.logger.Error("Failed to publish boost event", zap.Error(err))
	}

	h.logger.Info("Video boosted", zap.Int("video_id", videoID), zap.Int("coins", req.Coins))
	c.JSON(http.StatusOK, gin.H{"video_id": videoID, "boost": boost})
}
