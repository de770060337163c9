package models

import "time"

// Review 订单评价
type Review struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"index" json:"order_id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Rating    int       `json:"rating"`
	Content   string    `gorm:"size:500" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
