package models

// Event types published to Kafka. The notification consumer turns these
// into user-facing notification rows.
const (
	EventOrderPaid      = "order_paid"
	EventOrderCompleted = "order_completed"
	EventCoinsCredited  = "coins_credited"
	EventVideoBoosted   = "video_boosted"
)

type OrderEvent struct {
	EventType  string  `json:"event_type"`
	OrderID    string  `json:"order_id"`
	UserID     int     `json:"user_id"`
	Amount     float64 `json:"amount"`
	CoinAmount int     `json:"coin_amount,omitempty"`
	VideoID    int     `json:"video_id,omitempty"`
}
