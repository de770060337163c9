package models

import "time"

// Payment 支付单（预付款 / 维修尾款）
type Payment struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	OutTradeNo         string     `gorm:"size:64;uniqueIndex" json:"out_trade_no"`
	TransactionID      string     `gorm:"size:64;index" json:"transaction_id"`
	OrderID            uint       `gorm:"index" json:"order_id"`
	UserID             uint       `gorm:"index" json:"user_id"`
	Type               string     `gorm:"size:32;index" json:"type"`
	Amount             Money      `gorm:"type:decimal(12,2)" json:"amount"`
	Status             string     `gorm:"size:32;index" json:"status"`
	PrepayID           string     `gorm:"size:128" json:"-"`
	RefundStatus       string     `gorm:"size:32;default:none" json:"refund_status"`
	OutRefundNo        string     `gorm:"size:64;index" json:"out_refund_no"`
	RefundAmount       Money      `gorm:"type:decimal(12,2)" json:"refund_amount"`
	FailReason         string     `gorm:"size:255" json:"fail_reason"`
	PaidAt             *time.Time `json:"paid_at"`
	RefundRequestedAt  *time.Time `json:"refund_requested_at"`
	RefundCompletedAt  *time.Time `json:"refund_completed_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}
