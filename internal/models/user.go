package models

import "time"

// User 用户（客户 / 电工共用一张表，以 role 区分）
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Nickname  string    `gorm:"size:64" json:"nickname"`
	Phone     string    `gorm:"size:32;index" json:"phone"`
	OpenID    string    `gorm:"size:64;uniqueIndex" json:"openid"`
	Role      string    `gorm:"size:32;index" json:"role"`
	Status    string    `gorm:"size:32;default:active" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
