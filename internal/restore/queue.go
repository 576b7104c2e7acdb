package restore

import (
	"context"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/pkg/errors"
)

// defaultPushWait bounds how long Push waits for a worker to free a slot.
const defaultPushWait = 2 * time.Second

// MemoryQueue is a bounded in-process queue. Tasks do not survive a restart.
type MemoryQueue struct {
	tasks    chan domain.RestoreTask
	pushWait time.Duration
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1
	}
	return &MemoryQueue{
		tasks:    make(chan domain.RestoreTask, size),
		pushWait: defaultPushWait,
	}
}

// Push waits up to pushWait for room when the queue is full, so a burst of
// reactivations is absorbed by the workers instead of dropped. It gives up
// early when ctx is done.
func (q *MemoryQueue) Push(ctx context.Context, task domain.RestoreTask) error {
	select {
	case q.tasks <- task:
		return nil
	default:
	}

	timer := time.NewTimer(q.pushWait)
	defer timer.Stop()

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "task %s", task.ID)
	case <-timer.C:
		return errors.Wrap(domain.ErrQueueFull, "task %s", task.ID)
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*domain.RestoreDelivery, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task := <-q.tasks:
		return &domain.RestoreDelivery{Task: task}, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Ack(ctx context.Context, d *domain.RestoreDelivery) error {
	return nil
}

func (q *MemoryQueue) Requeue(ctx context.Context, d *domain.RestoreDelivery) error {
	return q.Push(ctx, d.Task)
}

func (q *MemoryQueue) Recover(ctx context.Context) (int, error) {
	return 0, nil
}

// Len is the number of tasks waiting for a worker.
func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}
