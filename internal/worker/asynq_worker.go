package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dianxiu-server/internal/logger"
	"github.com/dianxiu-server/internal/provider"
	"github.com/dianxiu-server/internal/queue"
	"github.com/dianxiu-server/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskNotificationPush, c.handleNotificationPush)
	mux.HandleFunc(queue.TaskWithdrawalRequery, c.handleWithdrawalRequery)
}

func (c *Consumer) handleNotificationPush(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_notification_push_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.NotificationPushPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_notification_push_unmarshal_failed", "error", err)
		return err
	}
	if payload.NotificationID == 0 {
		logger.Debugw("worker_notification_push_skip_invalid_payload", "notification_id", payload.NotificationID)
		return nil
	}
	if c.NotificationService == nil {
		logger.Warnw("worker_notification_push_skip_service_nil", "notification_id", payload.NotificationID)
		return nil
	}
	if err := c.NotificationService.Push(payload.NotificationID); err != nil {
		logger.Warnw("worker_notification_push_failed",
			"notification_id", payload.NotificationID,
			"user_id", payload.UserID,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handleWithdrawalRequery(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_withdrawal_requery_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.WithdrawalRequeryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_withdrawal_requery_unmarshal_failed", "error", err)
		return err
	}
	if payload.OutBatchNo == "" {
		logger.Debugw("worker_withdrawal_requery_skip_invalid_payload")
		return nil
	}
	if c.WithdrawalService == nil {
		logger.Warnw("worker_withdrawal_requery_skip_service_nil", "out_batch_no", payload.OutBatchNo)
		return nil
	}
	err := c.WithdrawalService.RequeryWithdrawal(ctx, payload.OutBatchNo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWithdrawalNotFound):
			logger.Debugw("worker_withdrawal_requery_skip_not_found", "out_batch_no", payload.OutBatchNo)
			return nil
		default:
			logger.Warnw("worker_withdrawal_requery_failed", "out_batch_no", payload.OutBatchNo, "error", err)
			return err
		}
	}
	return nil
}
