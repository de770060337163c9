package queue

import (
	"encoding/json"

	"github.com/dianxiu-server/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskNotificationPush 通知推送任务
	TaskNotificationPush = constants.TaskNotificationPush
	// TaskWithdrawalRequery 提现状态补偿查询任务
	TaskWithdrawalRequery = constants.TaskWithdrawalRequery
)

// NotificationPushPayload 通知推送任务载荷
type NotificationPushPayload struct {
	NotificationID uint `json:"notification_id"`
	UserID         uint `json:"user_id"`
}

// WithdrawalRequeryPayload 提现状态补偿查询任务载荷
type WithdrawalRequeryPayload struct {
	OutBatchNo string `json:"out_batch_no"`
}

// NewNotificationPushTask 创建通知推送任务
func NewNotificationPushTask(payload NotificationPushPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationPush, body), nil
}

// NewWithdrawalRequeryTask 创建提现状态补偿查询任务
func NewWithdrawalRequeryTask(payload WithdrawalRequeryPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWithdrawalRequery, body), nil
}
