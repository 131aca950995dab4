package models

import "time"

// Coupon codes are unique case-insensitively; codes are stored lowercased.
// A coupon is usable while is_active, not expired, and under max_uses.
type Coupon struct {
	ID              int        `json:"id"`
	Code            string     `json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	MaxUses         *int       `json:"max_uses,omitempty"`
	UsedCount       int        `json:"used_count"`
	IsActive        bool       `json:"is_active"`
}
