package service

import (
	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/logger"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/queue"
	"github.com/dianxiu-server/internal/repository"

	"gorm.io/gorm"
)

// NotificationService 站内通知服务
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	queueClient      *queue.Client
}

// NewNotificationService 创建通知服务
func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	queueClient *queue.Client,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		queueClient:      queueClient,
	}
}

// CreateInTx 事务内写入通知记录，与业务状态变更共同提交
func (s *NotificationService) CreateInTx(tx *gorm.DB, notification *models.Notification) error {
	repo := s.notificationRepo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	return repo.Create(notification)
}

// EnqueuePush 事务提交后异步推送，失败只记录日志不影响主流程
func (s *NotificationService) EnqueuePush(notification *models.Notification) {
	if notification == nil || notification.ID == 0 {
		return
	}
	if err := s.queueClient.EnqueueNotificationPush(queue.NotificationPushPayload{
		NotificationID: notification.ID,
		UserID:         notification.UserID,
	}); err != nil {
		logger.Warnw("notification_push_enqueue_failed",
			"notification_id", notification.ID,
			"user_id", notification.UserID,
			"error", err,
		)
	}
}

// List 分页查询用户通知
func (s *NotificationService) List(filter repository.NotificationListFilter) ([]models.Notification, int64, error) {
	return s.notificationRepo.List(filter)
}

// MarkRead 标记通知已读
func (s *NotificationService) MarkRead(id, userID uint) error {
	rows, err := s.notificationRepo.MarkRead(id, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		notification, fetchErr := s.notificationRepo.GetByID(id)
		if fetchErr != nil {
			return fetchErr
		}
		if notification == nil || notification.UserID != userID {
			return ErrNotificationNotFound
		}
	}
	return nil
}

// Push 执行通知推送（worker 消费）
func (s *NotificationService) Push(notificationID uint) error {
	notification, err := s.notificationRepo.GetByID(notificationID)
	if err != nil {
		return err
	}
	if notification == nil {
		logger.Infow("notification_push_skipped_not_found", "notification_id", notificationID)
		return nil
	}
	logger.Infow("notification_pushed",
		"notification_id", notification.ID,
		"user_id", notification.UserID,
		"type", notification.Type,
	)
	return nil
}

// NewPaymentSuccessNotification 构造支付成功通知
func NewPaymentSuccessNotification(payment *models.Payment, order *models.Order) *models.Notification {
	return &models.Notification{
		UserID:  payment.UserID,
		Type:    constants.NotificationTypePayment,
		Title:   "支付成功",
		Content: "订单 " + order.OrderNo + " 已支付 " + payment.Amount.String() + " 元",
		Extra: models.JSON{
			"order_id":     order.ID,
			"order_no":     order.OrderNo,
			"out_trade_no": payment.OutTradeNo,
			"amount":       payment.Amount.String(),
		},
	}
}

// NewRefundResultNotification 构造退款结果通知
func NewRefundResultNotification(payment *models.Payment, succeeded bool) *models.Notification {
	title := "退款成功"
	if !succeeded {
		title = "退款未能完成"
	}
	return &models.Notification{
		UserID:  payment.UserID,
		Type:    constants.NotificationTypeRefund,
		Title:   title,
		Content: "支付单 " + payment.OutTradeNo + " 退款金额 " + payment.RefundAmount.String() + " 元",
		Extra: models.JSON{
			"out_trade_no":  payment.OutTradeNo,
			"out_refund_no": payment.OutRefundNo,
			"amount":        payment.RefundAmount.String(),
		},
	}
}

// NewWithdrawalResultNotification 构造提现结果通知
func NewWithdrawalResultNotification(withdrawal *models.Withdrawal) *models.Notification {
	var title string
	switch withdrawal.Status {
	case constants.WithdrawalStatusSuccess:
		title = "提现到账"
	case constants.WithdrawalStatusFailed:
		title = "提现失败"
	case constants.WithdrawalStatusCancelled:
		title = "提现已撤销"
	default:
		title = "提现状态更新"
	}
	return &models.Notification{
		UserID:  withdrawal.ElectricianID,
		Type:    constants.NotificationTypeWithdrawal,
		Title:   title,
		Content: "提现单 " + withdrawal.OutBatchNo + " 金额 " + withdrawal.Amount.String() + " 元",
		Extra: models.JSON{
			"out_batch_no": withdrawal.OutBatchNo,
			"amount":       withdrawal.Amount.String(),
			"status":       withdrawal.Status,
		},
	}
}
