package models

import "time"

// Withdrawal 电工提现单
type Withdrawal struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	OutBatchNo      string     `gorm:"size:64;uniqueIndex" json:"out_batch_no"`
	ElectricianID   uint       `gorm:"index" json:"electrician_id"`
	Amount          Money      `gorm:"type:decimal(12,2)" json:"amount"`
	Status          string     `gorm:"size:32;index" json:"status"`
	TransferBillNo  string     `gorm:"size:64;index" json:"transfer_bill_no"`
	OpenID          string     `gorm:"size:64" json:"-"`
	RealName        string     `gorm:"size:64" json:"-"`
	PackageInfo     string     `gorm:"size:255" json:"package_info"`
	// 发起时刻的账目快照，审计用，落库后不再变动
	SnapshotTotalIncome Money  `gorm:"type:decimal(12,2)" json:"snapshot_total_income"`
	SnapshotWithdrawn   Money  `gorm:"type:decimal(12,2)" json:"snapshot_withdrawn"`
	SnapshotAvailable   Money  `gorm:"type:decimal(12,2)" json:"snapshot_available"`
	FailReason      string     `gorm:"size:255" json:"fail_reason"`
	CompletedAt     *time.Time `json:"completed_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
