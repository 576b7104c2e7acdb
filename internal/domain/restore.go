package domain

import (
	"context"
	"time"
)

// RestoreTask asks the background runner to reactivate the content an account
// soft deleted after Cutoff.
type RestoreTask struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Cutoff     time.Time `json:"cutoff"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempts   int       `json:"attempts"`
}

// RestoreResult summarises one run of a restore task.
type RestoreResult struct {
	Restored int64 `json:"restored"`
	Skipped  int64 `json:"skipped"`
}

type RestoreEnqueuer interface {
	Enqueue(ctx context.Context, task RestoreTask) error
}

// RestoreDelivery is a task popped from a RestoreQueue. Payload is the
// encoded form the queue needs to acknowledge it.
type RestoreDelivery struct {
	Task    RestoreTask
	Payload string
}

// RestoreQueue is the at-least-once queue behind the restore runner. A popped
// task stays in flight until it is acknowledged or requeued.
type RestoreQueue interface {
	Push(ctx context.Context, task RestoreTask) error
	// Pop returns nil without error when nothing arrived within timeout.
	Pop(ctx context.Context, timeout time.Duration) (*RestoreDelivery, error)
	Ack(ctx context.Context, d *RestoreDelivery) error
	Requeue(ctx context.Context, d *RestoreDelivery) error
	// Recover puts tasks left in flight by a previous process back in the queue.
	Recover(ctx context.Context) (int, error)
}
