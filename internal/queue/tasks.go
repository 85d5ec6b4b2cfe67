// Package queue defines the asynq task carrying storage notifications from
// the webhook into the worker pool.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// ProcessNotificationTask is scheduled for every storage notification the
// webhook receives. The payload is the raw notification body, passed through
// untouched so the normalizer owns all payload-shape branching.
const ProcessNotificationTask = "video:process-notification"

// maxRetry bounds redelivery of a transiently failing notification. Asynq
// archives the task after the last retry, which is the dead-letter backstop.
const maxRetry = 10

// EnqueueNotification enqueues one raw storage notification for processing.
func EnqueueNotification(ctx context.Context, client *asynq.Client, body []byte) error {
	task := asynq.NewTask(ProcessNotificationTask, body)
	_, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry), asynq.Timeout(2*time.Minute))
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
