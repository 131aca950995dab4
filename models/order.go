package models

import "time"

type OrderKind string

const (
	OrderKindCoin OrderKind = "coin"
	OrderKindItem OrderKind = "item"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// Order is an append-only record of a payment event: either a coin pack
// purchase or an item purchase with a pickup lifecycle. Item purchases move
// pending -> paid -> completed (or cancelled/failed).
type Order struct {
	ID              string      `json:"id"`
	Kind            OrderKind   `json:"kind"`
	UserID          int         `json:"user_id"`
	ItemID          *int        `json:"item_id,omitempty"`
	BusinessID      *int        `json:"business_id,omitempty"`
	Quantity        int         `json:"quantity"`
	Amount          float64     `json:"amount"`
	OriginalAmount  *float64    `json:"original_amount,omitempty"`
	CouponCode      *string     `json:"coupon_code,omitempty"`
	DiscountPercent *int        `json:"discount_percent,omitempty"`
	CoinAmount      *int        `json:"coin_amount,omitempty"`
	Status          OrderStatus `json:"status"`
	StripeSessionID string      `json:"stripe_session_id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type CheckoutRequest struct {
	StripeSessionID string `json:"stripe_session_id" binding:"required"`
	CouponCode      string `json:"coupon_code"`
}

type CoinCheckoutRequest struct {
	StripeSessionID string  `json:"stripe_session_id" binding:"required"`
	CoinAmount      int     `json:"coin_amount" binding:"required,gt=0"`
	Amount          float64 `json:"amount" binding:"required,gt=0"`
}

type VerifyOrderRequest struct {
	OrderID string `json:"order_id"`
	Token   string `json:"token"`
}
