package worker

import (
	"context"
	"testing"

	"github.com/dianxiu-server/internal/provider"
	"github.com/dianxiu-server/internal/queue"

	"github.com/hibiken/asynq"
)

func TestHandleNotificationPushInvalidPayload(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task := asynq.NewTask(queue.TaskNotificationPush, []byte("not-json"))

	if err := consumer.handleNotificationPush(context.Background(), task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestHandleNotificationPushZeroIDSkipped(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task := asynq.NewTask(queue.TaskNotificationPush, []byte(`{"notification_id":0}`))

	if err := consumer.handleNotificationPush(context.Background(), task); err != nil {
		t.Fatalf("expected nil for zero notification id, got %v", err)
	}
}

func TestHandleWithdrawalRequeryEmptyBatchNoSkipped(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task := asynq.NewTask(queue.TaskWithdrawalRequery, []byte(`{"out_batch_no":""}`))

	if err := consumer.handleWithdrawalRequery(context.Background(), task); err != nil {
		t.Fatalf("expected nil for empty out_batch_no, got %v", err)
	}
}

func TestHandleWithdrawalRequeryServiceNilSkipped(t *testing.T) {
	consumer := NewConsumer(&provider.Container{})
	task := asynq.NewTask(queue.TaskWithdrawalRequery, []byte(`{"out_batch_no":"WD-1"}`))

	if err := consumer.handleWithdrawalRequery(context.Background(), task); err != nil {
		t.Fatalf("expected nil when withdrawal service missing, got %v", err)
	}
}

func TestRegisterNilMuxNoPanic(t *testing.T) {
	consumer := NewConsumer(nil)
	consumer.Register(nil)
}
