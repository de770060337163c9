package models

import "time"

// ServiceType 维修服务类目（含可信预付金额）
type ServiceType struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:64" json:"name"`
	PrepayAmount Money     `gorm:"type:decimal(12,2)" json:"prepay_amount"`
	Enabled      bool      `gorm:"default:true" json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
