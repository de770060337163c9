package models

import "time"

// Certification 电工实名认证记录
type Certification struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ElectricianID uint     `gorm:"uniqueIndex" json:"electrician_id"`
	RealName     string    `gorm:"size:64" json:"real_name"`
	IDNumber     string    `gorm:"size:32" json:"id_number"`
	Status       string    `gorm:"size:32;index" json:"status"`
	ReviewedAt   *time.Time `json:"reviewed_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
