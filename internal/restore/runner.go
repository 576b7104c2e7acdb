package restore

import (
	"context"
	"sync"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/internal/metrics"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
	"gopkg.in/cenkalti/backoff.v1"
)

const (
	pollTimeout   = time.Second
	maxRetryWait  = 30 * time.Second
	popErrorPause = 2 * time.Second
)

// depthReporter is implemented by queues that know their backlog.
type depthReporter interface {
	Len() int
}

// Handler runs one restore task.
type Handler func(ctx context.Context, task domain.RestoreTask) (domain.RestoreResult, error)

// Runner executes restore tasks on a fixed pool of workers. A task is acked
// only after its handler succeeded; a task whose retries ran out goes back in
// the queue.
type Runner struct {
	log   zerolog.Logger
	queue domain.RestoreQueue
	bus   EventBus.Bus

	workers         int
	retryInitial    time.Duration
	retryMaxElapsed time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(log logger.Logger, queue domain.RestoreQueue, cfg domain.RestoreConfig, bus EventBus.Bus) *Runner {
	r := &Runner{
		log:             log.With().Str("module", "restore").Logger(),
		queue:           queue,
		bus:             bus,
		workers:         cfg.Workers,
		retryInitial:    time.Duration(cfg.RetryInitialMs) * time.Millisecond,
		retryMaxElapsed: time.Duration(cfg.RetryMaxElapsedSeconds) * time.Second,
	}
	if r.workers <= 0 {
		r.workers = 1
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())

	return r
}

func (r *Runner) Enqueue(ctx context.Context, task domain.RestoreTask) error {
	if err := r.queue.Push(ctx, task); err != nil {
		return errors.Wrap(err, "push restore task %s", task.ID)
	}
	r.reportDepth()
	return nil
}

func (r *Runner) reportDepth() {
	if q, ok := r.queue.(depthReporter); ok {
		metrics.RestoreQueueDepth(q.Len())
	}
}

func (r *Runner) Start(handler Handler) error {
	recovered, err := r.queue.Recover(r.ctx)
	if err != nil {
		return errors.Wrap(err, "recover in-flight restore tasks")
	}
	if recovered > 0 {
		r.log.Info().Int("tasks", recovered).Msg("requeued restore tasks left in flight")
	}

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(i, handler)
	}

	r.log.Info().Int("workers", r.workers).Msg("restore runner started")

	return nil
}

// Stop cancels the workers and waits for them. A task interrupted by Stop is
// not acked.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
	r.log.Info().Msg("restore runner stopped")
}

func (r *Runner) work(id int, handler Handler) {
	defer r.wg.Done()

	log := r.log.With().Int("worker", id).Logger()

	for {
		if r.ctx.Err() != nil {
			return
		}

		d, err := r.queue.Pop(r.ctx, pollTimeout)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("could not pop restore task")
			r.pause(popErrorPause)
			continue
		}
		if d == nil {
			continue
		}
		r.reportDepth()

		r.process(log, handler, d)
	}
}

func (r *Runner) pause(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-r.ctx.Done():
	}
}

func (r *Runner) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryInitial
	b.MaxInterval = maxRetryWait
	b.MaxElapsedTime = r.retryMaxElapsed

	return &contextBackOff{ctx: r.ctx, delegate: b}
}

func (r *Runner) process(log zerolog.Logger, handler Handler, d *domain.RestoreDelivery) {
	task := d.Task
	log = log.With().Str("task_id", task.ID).Str("account_id", task.AccountID).Logger()

	var result domain.RestoreResult
	operation := func() error {
		res, err := handler(r.ctx, task)
		result = res
		return err
	}
	notify := func(err error, wait time.Duration) {
		metrics.RestoreTask(metrics.RestoreRetried)
		log.Warn().Err(err).Dur("retry_in", wait).Msg("restore task failed, retrying")
	}

	err := backoff.RetryNotify(operation, r.newBackOff(), notify)
	if err != nil {
		if r.ctx.Err() != nil {
			log.Info().Msg("restore task interrupted by shutdown")
			return
		}

		task.Attempts++
		d.Task = task
		metrics.RestoreTask(metrics.RestoreRequeued)
		log.Error().Err(err).Int("attempts", task.Attempts).Msg("restore task exhausted its retries, requeueing")

		r.bus.Publish(domain.EventTopicRestore, &domain.RestoreEvent{
			TaskID:    task.ID,
			AccountID: task.AccountID,
			Error:     err.Error(),
			At:        time.Now().UTC(),
		})

		if err := r.queue.Requeue(r.ctx, d); err != nil {
			log.Error().Err(err).Msg("could not requeue restore task")
		}
		return
	}

	if err := r.queue.Ack(r.ctx, d); err != nil {
		log.Error().Err(err).Msg("could not ack restore task")
	}

	metrics.RestoreTask(metrics.RestoreSucceeded)
	log.Debug().Int64("restored", result.Restored).Int64("skipped", result.Skipped).Msg("restore task done")
}

// contextBackOff stops retrying once ctx is done.
type contextBackOff struct {
	ctx      context.Context
	delegate backoff.BackOff
}

func (b *contextBackOff) NextBackOff() time.Duration {
	if b.ctx.Err() != nil {
		return backoff.Stop
	}
	return b.delegate.NextBackOff()
}

func (b *contextBackOff) Reset() {
	b.delegate.Reset()
}
