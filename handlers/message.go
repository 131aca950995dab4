package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type MessageHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewMessageHandler(db *sql.DB, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		db:     db,
		logger: logger,
	}
}

func (h *MessageHandler) Send(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "SendMessage")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RecipientID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot message yourself"})
		return
	}

	var msg models.Message
	err := h.db.QueryRowContext(ctx,
		"INSERT INTO messages (sender_id, recipient_id, body) VALUES ($1, $2, $3) RETURNING id, sender_id, recipient_id, body, created_at",
		userID, req.RecipientID, req.Body,
	).Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Body, &msg.CreatedAt)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to send message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("message.id", msg.ID))
	c.JSON(http.StatusCreated, msg)
}

// ListConversation returns the two-way thread with another user and marks
// the inbound side read.
func (h *MessageHandler) ListConversation(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "ListConversation")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	otherID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, sender_id, recipient_id, body, created_at, read_at
		   FROM messages
		  WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		  ORDER BY created_at`,
		userID, otherID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.RecipientID, &msg.Body, &msg.CreatedAt, &msg.ReadAt); err != nil {
			span.RecordError(err)
			continue
		}
		messages = append(messages, msg)
	}

	_, err = h.db.ExecContext(ctx,
		"UPDATE messages SET read_at = CURRENT_TIMESTAMP WHERE sender_id = $1 AND recipient_id = $2 AND read_at IS NULL",
		otherID, userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to mark messages read", zap.Error(err))
	}

	c.JSON(http.StatusOK, messages)
}
