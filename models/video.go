package models

import "time"

type Video struct {
	ID         int       `json:"id"`
	BusinessID int       `json:"business_id"`
	Caption    string    `json:"caption"`
	VideoURL   string    `json:"video_url"`
	Boost      int       `json:"boost"`
	Views      int       `json:"views"`
	Likes      int       `json:"likes"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateVideoRequest struct {
	Caption  string `json:"caption" binding:"required"`
	VideoURL string `json:"video_url" binding:"required,url"`
}

type Comment struct {
	ID        int       `json:"id"`
	VideoID   int       `json:"video_id"`
	UserID    int       `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

type BoostRequest struct {
	Coins int `json:"coins" binding:"required,gt=0"`
}
