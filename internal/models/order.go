package models

import "time"

// Order 维修订单
type Order struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	OrderNo       string     `gorm:"size:64;uniqueIndex" json:"order_no"`
	UserID        uint       `gorm:"index" json:"user_id"`
	ElectricianID uint       `gorm:"index" json:"electrician_id"`
	ServiceTypeID uint       `gorm:"index" json:"service_type_id"`
	Status        string     `gorm:"size:32;index" json:"status"`
	PrepayAmount  Money      `gorm:"type:decimal(12,2)" json:"prepay_amount"`
	FinalAmount   Money      `gorm:"type:decimal(12,2)" json:"final_amount"`
	Address       string     `gorm:"size:255" json:"address"`
	Description   string     `gorm:"size:500" json:"description"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
