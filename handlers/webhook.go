package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/DeoTime/localys/kafka"
	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"
	"github.com/DeoTime/localys/payments"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	db            *sql.DB
	webhookSecret string
	producer      sarama.SyncProducer
	topic         string
	logger        *zap.Logger
}

func NewWebhookHandler(db *sql.DB, webhookSecret string, producer sarama.SyncProducer, topic string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		db:            db,
		webhookSecret: webhookSecret,
		producer:      producer,
		topic:         topic,
		logger:        logger,
	}
}

// HandleStripe processes Stripe webhook deliveries. Only completed checkout
// sessions with payment_status paid change anything; everything else is
// acknowledged and dropped. Crediting keys off the conditional
// pending->paid transition, so a redelivered event credits nothing twice.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "StripeWebhook")
	defer span.End()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read payload"})
		return
	}

	header := c.GetHeader("Stripe-Signature")
	if err := payments.VerifySignature(payload, header, h.webhookSecret, time.Now()); err != nil {
		middleware.RecordWebhookEvent("unknown", "rejected")
		h.logger.Warn("Stripe webhook signature rejected", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	var event payments.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		middleware.RecordWebhookEvent("unknown", "rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	span.SetAttributes(attribute.String("stripe.event", event.Type))

	if event.Type != payments.EventCheckoutCompleted {
		middleware.RecordWebhookEvent(event.Type, "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	session := event.Data.Object
	if session.PaymentStatus != payments.PaymentStatusPaid {
		middleware.RecordWebhookEvent(event.Type, "ignored")
		h.logger.Info("Checkout session not yet paid, ignoring",
			zap.String("session_id", session.ID),
			zap.String("payment_status", session.PaymentStatus))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if err := h.settleSession(ctx, session); err != nil {
		middleware.RecordWebhookEvent(event.Type, "failed")
		span.RecordError(err)
		h.logger.Error("Failed to settle checkout session",
			zap.String("session_id", session.ID), zap.Error(err))
		// Non-2xx makes Stripe redeliver; settlement is idempotent.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.RecordWebhookEvent(event.Type, "processed")
	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

func (h *WebhookHandler) settleSession(ctx context.Context, session payments.CheckoutSession) error {
	rows, err := h.db.QueryContext(ctx,
		`UPDATE orders SET status = 'paid', updated_at = CURRENT_TIMESTAMP
		  WHERE stripe_session_id = $1 AND status = 'pending'
		  RETURNING id, kind, user_id, amount, coin_amount`,
		session.ID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	type paidOrder struct {
		id         string
		kind       models.OrderKind
		userID     int
		amount     float64
		coinAmount *int
	}
	var paid []paidOrder
	for rows.Next() {
		var o paidOrder
		if err := rows.Scan(&o.id, &o.kind, &o.userID, &o.amount, &o.coinAmount); err != nil {
			return err
		}
		paid = append(paid, o)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(paid) == 0 {
		// Already settled by an earlier delivery or the optimistic confirm.
		h.logger.Info("No pending orders for session", zap.String("session_id", session.ID))
		return nil
	}

	for _, o := range paid {
		event := models.OrderEvent{
			EventType: models.EventOrderPaid,
			OrderID:   o.id,
			UserID:    o.userID,
			Amount:    o.amount,
		}

		if o.kind == models.OrderKindCoin && o.coinAmount != nil {
			if _, err := h.db.ExecContext(ctx,
				"UPDATE users SET coin_balance = coin_balance + $1 WHERE id = $2",
				*o.coinAmount, o.userID,
			); err != nil {
				return err
			}
			event.EventType = models.EventCoinsCredited
			event.CoinAmount = *o.coinAmount
			h.logger.Info("Coins credited",
				zap.String("order_id", o.id),
				zap.Int("user_id", o.userID),
				zap.Int("coin_amount", *o.coinAmount))
		} else {
			h.logger.Info("Order paid",
				zap.String("order_id", o.id),
				zap.Int("user_id", o.userID),
				zap.Float64("amount", o.amount))
		}

		if err := kafka.PublishEvent(ctx, h.producer, h.topic, event, h.logger); err != nil {
			h.logger.Error("Failed to publish payment event",
				zap.String("order_id", o.id), zap.Error(err))
		}
	}

	return nil
}
