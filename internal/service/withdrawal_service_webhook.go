package service

import (
	"context"
	"time"

	"github.com/dianxiu-server/internal/constants"
	"github.com/dianxiu-server/internal/models"
	"github.com/dianxiu-server/internal/payment/wechatpay"

	"gorm.io/gorm"
)

// HandleTransferWebhook 处理微信商家转账结果回调。
func (s *WithdrawalService) HandleTransferWebhook(input WebhookInput) (*models.Withdrawal, string, error) {
	log := withdrawalLogger("body_size", len(input.Body))
	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := wechatpay.VerifyAndDecodeTransferWebhook(ctx, s.wechatCfg, input.Headers, input.Body)
	if err != nil {
		log.Warnw("transfer_webhook_verify_failed", "error", err)
		return nil, "", ErrWebhookInvalid
	}
	log = withdrawalLogger(
		"event_type", result.EventType,
		"out_batch_no", result.OutBatchNo,
		"transfer_bill_no", result.TransferBillNo,
		"state", result.State,
	)
	log.Infow("transfer_webhook_received")

	withdrawal, err := s.withdrawalRepo.GetByOutBatchNo(result.OutBatchNo)
	if err != nil {
		log.Errorw("transfer_webhook_lookup_failed", "error", err)
		return nil, result.EventType, ErrWithdrawalFetchFailed
	}
	if withdrawal == nil {
		log.Warnw("transfer_webhook_withdrawal_not_found")
		return nil, result.EventType, ErrWithdrawalNotFound
	}

	updated, err := s.applyTransferStatus(withdrawal, result.Status, result.TransferBillNo, result.FailReason, result.UpdatedAt)
	if err != nil {
		log.Errorw("transfer_webhook_apply_failed", "error", err)
		return nil, result.EventType, err
	}
	log.Infow("transfer_webhook_processed", "new_status", updated.Status)
	return updated, result.EventType, nil
}

// RequeryWithdrawal 补偿查询提现状态（worker 消费）
func (s *WithdrawalService) RequeryWithdrawal(ctx context.Context, outBatchNo string) error {
	withdrawal, err := s.withdrawalRepo.GetByOutBatchNo(outBatchNo)
	if err != nil {
		return err
	}
	if withdrawal == nil || constants.IsWithdrawalStatusTerminal(withdrawal.Status) {
		return nil
	}
	_, err = s.QueryWithdrawalStatus(ctx, outBatchNo, 0)
	return err
}

// applyTransferStatus 以事务应用转账状态。终态只落一次，通知随终态同事务写入。
func (s *WithdrawalService) applyTransferStatus(withdrawal *models.Withdrawal, status, transferBillNo, failReason string, completedAt *time.Time) (*models.Withdrawal, error) {
	if withdrawal.Status == status {
		return withdrawal, nil
	}

	var notification *models.Notification
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		withdrawalRepo := s.withdrawalRepo.WithTx(tx)
		locked, err := withdrawalRepo.GetByOutBatchNoForUpdate(withdrawal.OutBatchNo)
		if err != nil {
			return ErrWithdrawalFetchFailed
		}
		if locked == nil {
			return ErrWithdrawalNotFound
		}
		// 终态不回退，重复回调保持幂等
		if constants.IsWithdrawalStatusTerminal(locked.Status) || locked.Status == status {
			*withdrawal = *locked
			return nil
		}

		now := time.Now()
		locked.Status = status
		if transferBillNo != "" {
			locked.TransferBillNo = transferBillNo
		}
		if failReason != "" {
			locked.FailReason = failReason
		}
		if status == constants.WithdrawalStatusSuccess {
			doneAt := now
			if completedAt != nil {
				doneAt = *completedAt
			}
			locked.CompletedAt = &doneAt
		}
		if err := withdrawalRepo.Update(locked); err != nil {
			return ErrWithdrawalUpdateFailed
		}

		if constants.IsWithdrawalStatusTerminal(status) {
			notification = NewWithdrawalResultNotification(locked)
			if err := s.notificationSvc.CreateInTx(tx, notification); err != nil {
				return ErrWithdrawalUpdateFailed
			}
		}
		*withdrawal = *locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if notification != nil {
		s.notificationSvc.EnqueuePush(notification)
	}
	return withdrawal, nil
}
