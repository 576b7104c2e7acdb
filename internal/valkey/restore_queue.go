package valkey

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/rs/zerolog"
	"github.com/valkey-io/valkey-go"
)

// RestoreQueue keeps restore tasks in two Valkey lists. Pop moves a task from
// pending to processing atomically and Ack removes it from processing, so a
// task held by a crashed worker is still in processing when the next process
// starts and calls Recover.
type RestoreQueue struct {
	log    zerolog.Logger
	client valkey.Client

	pendingKey    string
	processingKey string
}

func NewRestoreQueue(log logger.Logger, svc *Service) *RestoreQueue {
	return newRestoreQueue(log, svc.GetClient(), svc.Key("restore", "pending"), svc.Key("restore", "processing"))
}

func newRestoreQueue(log logger.Logger, client valkey.Client, pendingKey, processingKey string) *RestoreQueue {
	return &RestoreQueue{
		log:           log.With().Str("module", "valkey-restore-queue").Logger(),
		client:        client,
		pendingKey:    pendingKey,
		processingKey: processingKey,
	}
}

func encodeTask(task domain.RestoreTask) (string, error) {
	b, err := json.Marshal(task)
	if err != nil {
		return "", errors.Wrap(err, "encode restore task %s", task.ID)
	}
	return string(b), nil
}

func decodeTask(payload string) (domain.RestoreTask, error) {
	var task domain.RestoreTask
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return task, errors.Wrap(err, "decode restore task")
	}
	return task, nil
}

func (q *RestoreQueue) Push(ctx context.Context, task domain.RestoreTask) error {
	payload, err := encodeTask(task)
	if err != nil {
		return err
	}

	cmd := q.client.B().Lpush().Key(q.pendingKey).Element(payload).Build()
	if err := q.client.Do(ctx, cmd).Error(); err != nil {
		return errors.Wrap(err, "push restore task %s", task.ID)
	}

	return nil
}

func (q *RestoreQueue) Pop(ctx context.Context, timeout time.Duration) (*domain.RestoreDelivery, error) {
	cmd := q.client.B().Blmove().
		Source(q.pendingKey).
		Destination(q.processingKey).
		Right().
		Left().
		Timeout(timeout.Seconds()).
		Build()

	payload, err := q.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "pop restore task")
	}

	task, err := decodeTask(payload)
	if err != nil {
		// a payload nobody can read would block the processing list forever
		q.log.Error().Err(err).Str("payload", payload).Msg("dropping undecodable restore task")
		_ = q.remove(ctx, payload)
		return nil, nil
	}

	return &domain.RestoreDelivery{Task: task, Payload: payload}, nil
}

func (q *RestoreQueue) remove(ctx context.Context, payload string) error {
	cmd := q.client.B().Lrem().Key(q.processingKey).Count(1).Element(payload).Build()
	return q.client.Do(ctx, cmd).Error()
}

func (q *RestoreQueue) Ack(ctx context.Context, d *domain.RestoreDelivery) error {
	if err := q.remove(ctx, d.Payload); err != nil {
		return errors.Wrap(err, "ack restore task %s", d.Task.ID)
	}
	return nil
}

// Requeue pushes the task back to pending with its updated attempt count and
// drops the in-flight copy.
func (q *RestoreQueue) Requeue(ctx context.Context, d *domain.RestoreDelivery) error {
	payload, err := encodeTask(d.Task)
	if err != nil {
		return err
	}

	cmds := []valkey.Completed{
		q.client.B().Lpush().Key(q.pendingKey).Element(payload).Build(),
		q.client.B().Lrem().Key(q.processingKey).Count(1).Element(d.Payload).Build(),
	}
	for _, resp := range q.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return errors.Wrap(err, "requeue restore task %s", d.Task.ID)
		}
	}

	return nil
}

func (q *RestoreQueue) Recover(ctx context.Context) (int, error) {
	recovered := 0
	for {
		cmd := q.client.B().Lmove().
			Source(q.processingKey).
			Destination(q.pendingKey).
			Right().
			Right().
			Build()

		err := q.client.Do(ctx, cmd).Error()
		if valkey.IsValkeyNil(err) {
			return recovered, nil
		}
		if err != nil {
			return recovered, errors.Wrap(err, "recover in-flight restore tasks")
		}
		recovered++
	}
}
