package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/DeoTime/localys/kafka"
	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"
	"github.com/DeoTime/localys/qr"
	"github.com/DeoTime/localys/verification"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const orderColumns = `id, kind, user_id, item_id, business_id, quantity, amount,
	original_amount, coupon_code, discount_percent, coin_amount, status,
	stripe_session_id, created_at, updated_at`

type OrderHandler struct {
	db            *sql.DB
	signer        *verification.Signer
	publicBaseURL string
	producer      sarama.SyncProducer
	topic         string
	logger        *zap.Logger
}

func NewOrderHandler(db *sql.DB, signer *verification.Signer, publicBaseURL string, producer sarama.SyncProducer, topic string, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		db:            db,
		signer:        signer,
		publicBaseURL: publicBaseURL,
		producer:      producer,
		topic:         topic,
		logger:        logger,
	}
}

func scanOrder(row interface{ Scan(dest ...any) error }) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.Kind, &o.UserID, &o.ItemID, &o.BusinessID, &o.Quantity, &o.Amount,
		&o.OriginalAmount, &o.CouponCode, &o.DiscountPercent, &o.CoinAmount, &o.Status,
		&o.StripeSessionID, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "ListOrders")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to list orders", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to scan order", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		orders = append(orders, order)
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "GetOrder")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := scanOrder(h.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1 AND user_id = $2",
		orderID, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to get order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// QRCode renders the pickup QR for a paid order. The encoded URL carries the
// order id and its HMAC token, so the merchant-side scan can be verified
// offline from the secret alone.
func (h *OrderHandler) QRCode(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "OrderQRCode")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	orderID := c.Param("id")
	if _, err := uuid.Parse(orderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var status models.OrderStatus
	err := h.db.QueryRowContext(ctx,
		"SELECT status FROM orders WHERE id = $1 AND user_id = $2",
		orderID, userID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load order for QR", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if status != models.OrderStatusPaid {
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Order is not paid"})
		return
	}

	url := qr.VerificationURL(h.publicBaseURL, orderID, h.signer.Issue(orderID))
	png, err := qr.PNG(url, 256)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to render QR code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// VerifyAndComplete is the merchant-side scan endpoint. It authenticates the
// scan by HMAC token rather than by session, checks the order is paid and not
// yet handed over, and completes it. A replayed scan gets a conflict.
func (h *OrderHandler) VerifyAndComplete(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "VerifyAndCompleteOrder")
	defer span.End()

	var req models.VerifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id and token are required"})
		return
	}
	span.SetAttributes(attribute.String("order.id", req.OrderID))

	if !h.signer.Verify(req.OrderID, req.Token) {
		h.logger.Warn("Order verification token rejected", zap.String("order_id", req.OrderID))
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid verification token"})
		return
	}

	order, err := scanOrder(h.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1",
		req.OrderID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load order for verification", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	switch order.Status {
	case models.OrderStatusCompleted:
		c.JSON(http.StatusConflict, gin.H{"error": "Order already completed"})
		return
	case models.OrderStatusPaid:
		// Proceed to hand-over.
	default:
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "Order is not paid"})
		return
	}

	result, err := h.db.ExecContext(ctx,
		"UPDATE orders SET status = 'completed', updated_at = CURRENT_TIMESTAMP WHERE id = $1 AND status = 'paid'",
		req.OrderID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to complete order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		// Lost the race to a concurrent scan.
		c.JSON(http.StatusConflict, gin.H{"error": "Order already completed"})
		return
	}

	middleware.RecordOrderCompleted()
	order.Status = models.OrderStatusCompleted

	event := models.OrderEvent{
		EventType: models.EventOrderCompleted,
		OrderID:   order.ID,
		UserID:    order.UserID,
	}
	if err := kafka.PublishEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
		h.logger.Error("Failed to publish order_completed event", zap.Error(err))
	}

	h.logger.Info("Order completed", zap.String("order_id", order.ID), zap.Int("user_id", order.UserID))
	c.JSON(http.StatusOK, gin.H{
		"order_id": order.ID,
		"status":   order.Status,
		"kind":     order.Kind,
		"quantity": order.Quantity,
		"amount":   order.Amount,
	})
}
