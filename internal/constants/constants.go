package constants

// 订单状态常量
const (
	OrderStatusPendingPayment       = "pending_payment"
	OrderStatusPending              = "pending"
	OrderStatusAccepted             = "accepted"
	OrderStatusInProgress           = "in_progress"
	OrderStatusPendingRepairPayment = "pending_repair_payment"
	OrderStatusCompleted            = "completed"
	OrderStatusCancelled            = "cancelled"
)

// 支付类型常量
const (
	PaymentTypePrepay = "prepay"
	PaymentTypeRepair = "repair"
)

// 支付状态常量
const (
	PaymentStatusPending = "pending"
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
	PaymentStatusExpired = "expired"
)

// 退款状态常量
const (
	RefundStatusNone       = "none"
	RefundStatusProcessing = "processing"
	RefundStatusSuccess    = "success"
	RefundStatusRejected   = "rejected"
)

// 提现状态常量
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusSuccess    = "success"
	WithdrawalStatusFailed     = "failed"
	WithdrawalStatusCancelled  = "cancelled"
)

// 用户角色常量
const (
	UserRoleCustomer    = "customer"
	UserRoleElectrician = "electrician"

	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 实名认证状态常量
const (
	CertificationStatusPending  = "pending"
	CertificationStatusApproved = "approved"
	CertificationStatusRejected = "rejected"
)

// 通知类型常量
const (
	NotificationTypePayment    = "payment"
	NotificationTypeOrder      = "order"
	NotificationTypeRefund     = "refund"
	NotificationTypeWithdrawal = "withdrawal"
)

// 队列与任务常量
const (
	QueueDefault = "default"

	TaskNotificationPush  = "notification:push"
	TaskWithdrawalRequery = "withdrawal:requery"
)

// 评价满分（收入结算的质量门槛）
const ReviewRatingMax = 5

// IsPaymentStatusTerminal 支付状态是否为终态
func IsPaymentStatusTerminal(status string) bool {
	switch status {
	case PaymentStatusSuccess, PaymentStatusFailed, PaymentStatusExpired:
		return true
	default:
		return false
	}
}

// IsWithdrawalStatusTerminal 提现状态是否为终态
func IsWithdrawalStatusTerminal(status string) bool {
	switch status {
	case WithdrawalStatusSuccess, WithdrawalStatusFailed, WithdrawalStatusCancelled:
		return true
	default:
		return false
	}
}
