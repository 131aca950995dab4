package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/DeoTime/localys/kafka"
	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	errCouponNotFound = errors.New("coupon not found")
	errCouponInactive = errors.New("coupon is not active")
	errCouponExpired  = errors.New("coupon expired")
	errCouponMaxUses  = errors.New("coupon reached maximum uses")
)

type CheckoutHandler struct {
	db       *sql.DB
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewCheckoutHandler(db *sql.DB, producer sarama.SyncProducer, topic string, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		db:       db,
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Checkout turns the cart into pending item orders tied to a Stripe
// checkout session. The webhook moves them to paid. An optional coupon is
// validated and consumed here; its use counter is a conditional update, so
// two racing checkouts can't both take the last use.
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "Checkout")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT ci.item_id, i.business_id, i.price, ci.quantity
		   FROM cart_items ci JOIN items i ON i.id = ci.item_id
		  WHERE ci.user_id = $1 ORDER BY ci.id`,
		userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to load cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	type cartLine struct {
		itemID     int
		businessID int
		price      float64
		quantity   int
	}
	var lines []cartLine
	for rows.Next() {
		var line cartLine
		if err := rows.Scan(&line.itemID, &line.businessID, &line.price, &line.quantity); err != nil {
			rows.Close()
			span.RecordError(err)
			h.logger.Error("Failed to scan cart line", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		lines = append(lines, line)
	}
	rows.Close()
	if len(lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		return
	}

	var coupon *models.Coupon
	if req.CouponCode != "" {
		coupon, err = h.applyCoupon(ctx, req.CouponCode)
		if err != nil {
			middleware.RecordCouponApplied("rejected")
			switch {
			case errors.Is(err, errCouponNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			case errors.Is(err, errCouponInactive), errors.Is(err, errCouponExpired), errors.Is(err, errCouponMaxUses):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				span.RecordError(err)
				h.logger.Error("Failed to apply coupon", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			}
			return
		}
		middleware.RecordCouponApplied("applied")
		span.SetAttributes(attribute.String("coupon.code", coupon.Code))
	}

	orders := make([]models.Order, 0, len(lines))
	for _, line := range lines {
		original := line.price * float64(line.quantity)
		amount := original
		order := models.Order{
			ID:              uuid.NewString(),
			Kind:            models.OrderKindItem,
			UserID:          userID,
			Quantity:        line.quantity,
			Status:          models.OrderStatusPending,
			StripeSessionID: req.StripeSessionID,
		}
		itemID, businessID := line.itemID, line.businessID
		order.ItemID = &itemID
		order.BusinessID = &businessID
		if coupon != nil {
			amount = original * float64(100-coupon.DiscountPercent) / 100
			order.OriginalAmount = &original
			order.CouponCode = &coupon.Code
			order.DiscountPercent = &coupon.DiscountPercent
		}
		order.Amount = amount

		err := h.db.QueryRowContext(ctx,
			`INSERT INTO orders (id, kind, user_id, item_id, business_id, quantity, amount, original_amount, coupon_code, discount_percent, status, stripe_session_id)
			 VALUES ($1, 'item', $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10)
			 ON CONFLICT (stripe_session_id, item_id) DO NOTHING
			 RETURNING created_at, updated_at`,
			order.ID, order.UserID, order.ItemID, order.BusinessID, order.Quantity,
			order.Amount, order.OriginalAmount, order.CouponCode, order.DiscountPercent, order.StripeSessionID,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			// Duplicate submit for the same session; the first insert won.
			continue
		}
		if err != nil {
			span.RecordError(err)
			h.logger.Error("Failed to create order", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		orders = append(orders, order)
	}

	if _, err := h.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to clear cart", zap.Error(err))
	}

	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	h.logger.Info("Checkout created orders",
		zap.Int("user_id", userID),
		zap.Int("count", len(orders)),
		zap.String("stripe_session_id", req.StripeSessionID),
	)
	c.JSON(http.StatusCreated, gin.H{"orders": orders})
}

// CheckoutCoins records a pending coin-pack purchase for a session.
func (h *CheckoutHandler) CheckoutCoins(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "CheckoutCoins")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CoinCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order := models.Order{
		ID:              uuid.NewString(),
		Kind:            models.OrderKindCoin,
		UserID:          userID,
		Quantity:        1,
		Amount:          req.Amount,
		CoinAmount:      &req.CoinAmount,
		Status:          models.OrderStatusPending,
		StripeSessionID: req.StripeSessionID,
	}

	err := h.db.QueryRowContext(ctx,
		`INSERT INTO orders (id, kind, user_id, quantity, amount, coin_amount, status, stripe_session_id)
		 VALUES ($1, 'coin', $2, 1, $3, $4, 'pending', $5)
		 ON CONFLICT (stripe_session_id) WHERE kind = 'coin' DO NOTHING
		 RETURNING created_at, updated_at`,
		order.ID, order.UserID, order.Amount, order.CoinAmount, order.StripeSessionID,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusConflict, gin.H{"error": "Session already has a coin order"})
		return
	}
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to create coin order", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.String("order.id", order.ID))
	c.JSON(http.StatusCreated, order)
}

// Confirm is the post-redirect confirmation the checkout page calls. It is
// deliberately optimistic: the user sees success even when recording fails,
// and the webhook remains the source of truth for the durable state.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "ConfirmCheckout")
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

	result, err := h.db.ExecContext(ctx,
		"UPDATE orders SET status = 'paid', updated_at = CURRENT_TIMESTAMP WHERE id = $1 AND user_id = $2 AND status = 'pending'",
		orderID, userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Optimistic confirmation failed to record; responding success anyway",
			zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if affected, _ := result.RowsAffected(); affected > 0 {
		h.publishPaid(ctx, orderID, userID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *CheckoutHandler) publishPaid(ctx context.Context, orderID string, userID int) {
	event := models.OrderEvent{
		EventType: models.EventOrderPaid,
		OrderID:   orderID,
		UserID:    userID,
	}
	if err := kafka.PublishEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
		h.logger.Error("Failed to publish order_paid event", zap.Error(err))
	}
}

// applyCoupon validates the coupon and consumes one use. The final
// conditional update is the authority under concurrency: losing the race
// for the last use surfaces as the max-uses error.
func (h *CheckoutHandler) applyCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToLower(strings.TrimSpace(code))

	var coupon models.Coupon
	err := h.db.QueryRowContext(ctx,
		"SELECT id, code, discount_percent, expires_at, max_uses, used_count, is_active FROM coupons WHERE code = $1",
		code,
	).Scan(&coupon.ID, &coupon.Code, &coupon.DiscountPercent, &coupon.ExpiresAt, &coupon.MaxUses, &coupon.UsedCount, &coupon.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errCouponNotFound
	}
	if err != nil {
		return nil, err
	}

	if !coupon.IsActive {
		return nil, errCouponInactive
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now()) {
		return nil, errCouponExpired
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return nil, errCouponMaxUses
	}

	result, err := h.db.ExecContext(ctx,
		`UPDATE coupons SET used_count = used_count + 1
		  WHERE id = $1 AND is_active
		    AND (expires_at IS NULL OR expires_at > CURRENT_TIMESTAMP)
		    AND (max_uses IS NULL OR used_count < max_uses)`,
		coupon.ID,
	)
	if err != nil {
		return nil, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, errCouponMaxUses
	}

	coupon.UsedCount++
	return &coupon, nil
}
