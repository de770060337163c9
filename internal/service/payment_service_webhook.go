package service

import (
	"context"
	"time"

	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/payment/wechatpay"

	"gorm.io/gorm"
)

// WebhookInput 微信回调输入
type WebhookInput struct {
	Headers map[string]string
	Body    []byte
	Context context.Context
}

// HandlePaymentWebhook 处理微信支付结果回调。验签失败或支付单不存在
// 均按失败应答，由微信按自身策略重试。
func (s *PaymentService) HandlePaymentWebhook(input WebhookInput) (*models.Payment, string, error) {
	log := paymentLogger("body_size", len(input.Body))
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := wechatpay.VerifyAndDecodeWebhook(ctx, s.wechatCfg, input.Headers, input.Body)
	if err != nil {
		log.Warnw("payment_webhook_verify_failed", "error", err)
		return nil, "", mapWebhookError(err)
	}
	log = paymentLogger(
		"event_type", result.EventType,
		"out_trade_no", result.OutTradeNo,
		"transaction_id", result.TransactionID,
		"target_status", result.Status,
	)
	log.Infow("payment_webhook_received")

	payment, err := s.findWebhookPayment(result)
	if err != nil {
		log.Errorw("payment_webhook_payment_lookup_failed", "error", err)
		return nil, result.EventType, ErrPaymentFetchFailed
	}
	if payment == nil {
		log.Warnw("payment_webhook_payment_not_found")
		return nil, result.EventType, ErrPaymentNotFound
	}

	if result.Amount != "" && result.Amount != payment.Amount.String() {
		log.Warnw("payment_webhook_amount_mismatch",
			"stored_amount", payment.Amount.String(),
			"callback_amount", result.Amount,
		)
		return nil, result.EventType, ErrPaymentAmountMismatch
	}

	updated, orderPaid, err := s.applyPaymentUpdate(payment, result.Status, result.TransactionID, result.PaidAt)
	if err != nil {
		log.Errorw("payment_webhook_apply_failed", "error", err)
		return nil, result.EventType, err
	}
	log.Infow("payment_webhook_processed",
		"new_status", updated.Status,
		"order_paid", orderPaid,
	)
	return updated, result.EventType, nil
}

// HandleRefundWebhook 处理微信退款结果回调。
func (s *PaymentService) HandleRefundWebhook(input WebhookInput) (*models.Payment, string, error) {
	log := paymentLogger("body_size", len(input.Body))
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := wechatpay.VerifyAndDecodeRefundWebhook(ctx, s.wechatCfg, input.Headers, input.Body)
	if err != nil {
		log.Warnw("refund_webhook_verify_failed", "error", err)
		return nil, "", mapWebhookError(err)
	}
	log = paymentLogger(
		"event_type", result.EventType,
		"out_trade_no", result.OutTradeNo,
		"out_refund_no", result.OutRefundNo,
		"refund_status", result.RefundStatus,
	)
	log.Infow("refund_webhook_received")

	payment, err := s.paymentRepo.GetByOutRefundNo(result.OutRefundNo)
	if err != nil {
		log.Errorw("refund_webhook_payment_lookup_failed", "error", err)
		return nil, result.EventType, ErrPaymentFetchFailed
	}
	if payment == nil {
		log.Warnw("refund_webhook_payment_not_found")
		return nil, result.EventType, ErrPaymentNotFound
	}

	updated, err := s.applyRefundUpdate(payment, result)
	if err != nil {
		log.Errorw("refund_webhook_apply_failed", "error", err)
		return nil, result.EventType, err
	}
	log.Infow("refund_webhook_processed", "refund_status", updated.RefundStatus)
	return updated, result.EventType, nil
}

func (s *PaymentService) findWebhookPayment(result *wechatpay.WebhookResult) (*models.Payment, error) {
	if result.OutTradeNo != "" {
		payment, err := s.paymentRepo.GetByOutTradeNo(result.OutTradeNo)
		if err != nil || payment != nil {
			return payment, err
		}
	}
	if paymentID, ok := wechatpay.ParsePaymentIDFromAttach(result.Attach); ok {
		return s.paymentRepo.GetByID(paymentID)
	}
	return nil, nil
}

// applyPaymentUpdate 以事务应用支付终态并推进订单状态。
// 订单推进带前置状态条件，重复回调只会命中一次。
func (s *PaymentService) applyPaymentUpdate(payment *models.Payment, status string, providerRef string, paidAt *time.Time) (*models.Payment, bool, error) {
	// 幂等处理：已成功的不再回退状态
	if payment.Status == constants.PaymentStatusSuccess {
		return payment, false, nil
	}
	if payment.Status == status {
		return payment, false, nil
	}
	if constants.IsPaymentStatusTerminal(payment.Status) && status == constants.PaymentStatusPending {
		return payment, false, nil
	}

	orderPaid := false
	var notification *models.Notification
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		locked, err := paymentRepo.GetByOutTradeNoForUpdate(payment.OutTradeNo)
		if err != nil {
			return ErrPaymentFetchFailed
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		if locked.Status == constants.PaymentStatusSuccess || locked.Status == status {
			*payment = *locked
			return nil
		}

		now := time.Now()
		locked.Status = status
		if providerRef != "" {
			locked.TransactionID = providerRef
		}
		if status == constants.PaymentStatusSuccess {
			succeededAt := now
			if paidAt != nil {
				succeededAt = *paidAt
			}
			locked.PaidAt = &succeededAt
		}
		if err := paymentRepo.Update(locked); err != nil {
			return ErrPaymentUpdateFailed
		}

		if status == constants.PaymentStatusSuccess {
			paid, order, err := s.advanceOrderOnPaid(tx, locked)
			if err != nil {
				return err
			}
			orderPaid = paid
			if paid {
				notification = NewPaymentSuccessNotification(locked, order)
				if err := s.notificationSvc.CreateInTx(tx, notification); err != nil {
					return ErrPaymentUpdateFailed
				}
			}
		}
		*payment = *locked
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if notification != nil {
		s.notificationSvc.EnqueuePush(notification)
	}
	return payment, orderPaid, nil
}

// advanceOrderOnPaid 支付成功后的订单流转：
// 预付款到账进入待接单，维修款到账进入施工阶段。
func (s *PaymentService) advanceOrderOnPaid(tx *gorm.DB, payment *models.Payment) (bool, *models.Order, error) {
	orderRepo := s.orderRepo.WithTx(tx)
	order, err := orderRepo.GetByIDForUpdate(payment.OrderID)
	if err != nil {
		return false, nil, ErrOrderFetchFailed
	}
	if order == nil {
		return false, nil, ErrOrderNotFound
	}

	var fromStatus, toStatus string
	switch payment.Type {
	case constants.PaymentTypePrepay:
		fromStatus, toStatus = constants.OrderStatusPendingPayment, constants.OrderStatusPending
	case constants.PaymentTypeRepair:
		fromStatus, toStatus = constants.OrderStatusPendingRepairPayment, constants.OrderStatusInProgress
	default:
		return false, nil, ErrOrderStatusInvalid
	}

	rows, err := orderRepo.UpdateStatusFrom(order.ID, fromStatus, toStatus)
	if err != nil {
		return false, nil, ErrOrderUpdateFailed
	}
	if rows == 0 {
		// 订单已被其他回调推进过，保持幂等
		return false, order, nil
	}
	order.Status = toStatus

	if err := orderRepo.CreateStatusLog(&models.OrderStatusLog{
		OrderID:    order.ID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Remark:     "支付成功 " + payment.OutTradeNo,
	}); err != nil {
		return false, nil, ErrOrderUpdateFailed
	}
	return true, order, nil
}

func (s *PaymentService) applyRefundUpdate(payment *models.Payment, result *wechatpay.RefundWebhookResult) (*models.Payment, error) {
	// 终态退款不重复处理
	if payment.RefundStatus == constants.RefundStatusSuccess {
		return payment, nil
	}

	var notification *models.Notification
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		locked, err := paymentRepo.GetByOutTradeNoForUpdate(payment.OutTradeNo)
		if err != nil {
			return ErrPaymentFetchFailed
		}
		if locked == nil {
			return ErrPaymentNotFound
		}
		if locked.RefundStatus == constants.RefundStatusSuccess {
			*payment = *locked
			return nil
		}

		switch result.RefundStatus {
		case "SUCCESS":
			now := time.Now()
			completedAt := now
			if result.SucceededAt != nil {
				completedAt = *result.SucceededAt
			}
			locked.RefundStatus = constants.RefundStatusSuccess
			locked.RefundCompletedAt = &completedAt
			notification = NewRefundResultNotification(locked, true)
		case "ABNORMAL", "CLOSED":
			locked.RefundStatus = constants.RefundStatusRejected
			locked.FailReason = "退款状态 " + result.RefundStatus
			notification = NewRefundResultNotification(locked, false)
		default:
			// PROCESSING 等中间态不落终态
			*payment = *locked
			return nil
		}

		if err := paymentRepo.Update(locked); err != nil {
			return ErrPaymentUpdateFailed
		}
		if notification != nil {
			if err := s.notificationSvc.CreateInTx(tx, notification); err != nil {
				return ErrPaymentUpdateFailed
			}
		}
		*payment = *locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notification != nil {
		s.notificationSvc.EnqueuePush(notification)
	}
	return payment, nil
}

func mapWebhookError(err error) error {
	if err == nil {
		return nil
	}
	return ErrWebhookInvalid
}
