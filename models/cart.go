package models

type CartItem struct {
	ID       int     `json:"id"`
	UserID   int     `json:"user_id"`
	ItemID   int     `json:"item_id"`
	ItemName string  `json:"item_name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type AddCartItemRequest struct {
	ItemID   int `json:"item_id" binding:"required"`
	Quantity int `json:"quantity" binding:"required,gt=0"`
}
