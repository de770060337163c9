package models

import "time"

// Notification 站内通知
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	Type      string    `gorm:"size:32;index" json:"type"`
	Title     string    `gorm:"size:128" json:"title"`
	Content   string    `gorm:"size:500" json:"content"`
	Extra     JSON      `gorm:"type:text" json:"extra"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time `json:"created_at"`
}
