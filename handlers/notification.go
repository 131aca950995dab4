package handlers

import (
	"database/sql"
	"net/http"

	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type NotificationHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewNotificationHandler(db *sql.DB, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		db:     db,
		logger: logger,
	}
}

// List returns the newest notifications written by the event consumer.
func (h *NotificationHandler) List(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "ListNotifications")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, user_id, kind, body, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT 50",
		userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch notifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Body, &n.CreatedAt); err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan notification", zap.Error(err))
			continue
		}
		notifications = append(notifications, n)
	}

	span.SetAttributes(attribute.Int("notifications.count", len(notifications)))
	c.JSON(http.StatusOK, notifications)
}
