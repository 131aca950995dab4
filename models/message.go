package models

import "time"

type Message struct {
	ID          int        `json:"id"`
	SenderID    int        `json:"sender_id"`
	RecipientID int        `json:"recipient_id"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type SendMessageRequest struct {
	RecipientID int    `json:"recipient_id" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

type Notification struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Kind      string    `json:"kind"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
