package lifecycle

import (
	"context"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/internal/metrics"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/asaskevich/EventBus"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// maxWriteAttempts bounds how often a transition is re-applied after losing a
// conditional write to a concurrent writer.
const maxWriteAttempts = 3

type Service interface {
	Deactivate(ctx context.Context, kind domain.EntityKind, id string, callerID string, now time.Time) (*domain.Entity, error)
	// Reactivate with kind account checks the caller and then behaves like
	// ReactivateAccount.
	Reactivate(ctx context.Context, kind domain.EntityKind, id string, callerID string, now time.Time) (*domain.Entity, error)
	// ReactivateAccount flips the account back to active and queues the restore
	// of its content. It does not wait for the restore.
	ReactivateAccount(ctx context.Context, accountID string, now time.Time) (*domain.Entity, error)
	// RestoreOwnedContentWithinWindow is the body of a restore task.
	RestoreOwnedContentWithinWindow(ctx context.Context, task domain.RestoreTask) (domain.RestoreResult, error)
	// EnqueueRestore queues a restore task for an active account.
	EnqueueRestore(ctx context.Context, accountID string, now time.Time) (*domain.RestoreTask, error)
	Status(ctx context.Context, kind domain.EntityKind, id string, now time.Time) (*domain.LifecycleStatus, error)
}

type service struct {
	log       zerolog.Logger
	store     domain.EntityStore
	authz     Authorizer
	clock     Clock
	machine   Machine
	restore   domain.RestoreEnqueuer
	bus       EventBus.Bus
	batchSize int
}

func NewService(log logger.Logger, store domain.EntityStore, authz Authorizer, clock Clock, restore domain.RestoreEnqueuer, bus EventBus.Bus, batchSize int) Service {
	if batchSize <= 0 {
		batchSize = 500
	}

	return &service{
		log:       log.With().Str("module", "lifecycle").Logger(),
		store:     store,
		authz:     authz,
		clock:     clock,
		machine:   NewMachine(clock),
		restore:   restore,
		bus:       bus,
		batchSize: batchSize,
	}
}

type transitionFunc func(current domain.Entity) (domain.Entity, bool, error)

// apply reads the entity, runs fn and writes the result conditionally, all in
// one transaction. A lost race re-reads and re-applies fn.
func (s *service) apply(ctx context.Context, kind domain.EntityKind, id string, callerID string, fn transitionFunc) (*domain.Entity, bool, error) {
	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		var (
			prev    domain.Entity
			next    domain.Entity
			changed bool
		)

		err := s.store.Transaction(ctx, func(store domain.EntityStore) error {
			current, err := store.Get(ctx, kind, id)
			if err != nil {
				return err
			}
			prev = *current

			next, changed, err = fn(prev)
			if err != nil || !changed {
				return err
			}

			return store.Save(ctx, next, prev)
		})
		if errors.Is(err, domain.ErrConflict) {
			s.log.Debug().Str("kind", string(kind)).Str("id", id).Int("attempt", attempt).Msg("conditional write lost, retrying")
			continue
		}
		if err != nil {
			return nil, false, err
		}

		if changed {
			s.transitioned(prev, next, callerID)
		}

		return &next, changed, nil
	}

	return nil, false, errors.Wrap(domain.ErrConflict, "%s %s: giving up after %d attempts", kind, id, maxWriteAttempts)
}

func (s *service) transitioned(prev, next domain.Entity, callerID string) {
	metrics.Transition(string(next.Kind), string(prev.State), string(next.State))

	s.log.Info().
		Str("kind", string(next.Kind)).
		Str("id", next.ID).
		Str("from", string(prev.State)).
		Str("to", string(next.State)).
		Str("caller", callerID).
		Msg("lifecycle transition")

	s.bus.Publish(domain.EventTopicTransition, &domain.TransitionEvent{
		Kind:     next.Kind,
		ID:       next.ID,
		From:     prev.State,
		To:       next.State,
		CallerID: callerID,
		At:       next.UpdatedAt,
	})
}

// authorized wraps fn with the owner / elevated role check so it runs against
// the row read inside the transaction.
func (s *service) authorized(ctx context.Context, callerID string, fn transitionFunc) transitionFunc {
	return func(current domain.Entity) (domain.Entity, bool, error) {
		if err := authorize(ctx, s.authz, current, callerID); err != nil {
			return current, false, err
		}
		return fn(current)
	}
}

func (s *service) Deactivate(ctx context.Context, kind domain.EntityKind, id string, callerID string, now time.Time) (*domain.Entity, error) {
	if !kind.Valid() {
		return nil, errors.Wrap(domain.ErrUnsupportedKind, "kind %q", kind)
	}

	e, _, err := s.apply(ctx, kind, id, callerID, s.authorized(ctx, callerID, func(current domain.Entity) (domain.Entity, bool, error) {
		next, changed := s.machine.Deactivate(current, now)
		return next, changed, nil
	}))

	return e, err
}

func (s *service) Reactivate(ctx context.Context, kind domain.EntityKind, id string, callerID string, now time.Time) (*domain.Entity, error) {
	if !kind.Valid() {
		return nil, errors.Wrap(domain.ErrUnsupportedKind, "kind %q", kind)
	}

	if kind == domain.KindAccount {
		current, err := s.store.Get(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if err := authorize(ctx, s.authz, *current, callerID); err != nil {
			return nil, err
		}
		return s.ReactivateAccount(ctx, id, now)
	}

	e, _, err := s.apply(ctx, kind, id, callerID, s.authorized(ctx, callerID, func(current domain.Entity) (domain.Entity, bool, error) {
		return s.machine.Reactivate(current, now)
	}))

	return e, err
}

func (s *service) ReactivateAccount(ctx context.Context, accountID string, now time.Time) (*domain.Entity, error) {
	now = Normalize(now)

	e, changed, err := s.apply(ctx, domain.KindAccount, accountID, "", func(current domain.Entity) (domain.Entity, bool, error) {
		return s.machine.Reactivate(current, now)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return e, nil
	}

	// the account stays active even when the restore cannot be queued; an
	// operator can queue it again through the admin api
	if _, err := s.enqueue(ctx, accountID, now); err != nil {
		metrics.RestoreTask(metrics.RestoreEnqueueFailed)
		s.log.Error().Err(err).Str("account_id", accountID).Msg("could not enqueue content restore")
	}

	return e, nil
}

func (s *service) enqueue(ctx context.Context, accountID string, now time.Time) (*domain.RestoreTask, error) {
	task := domain.RestoreTask{
		ID:         ulid.Make().String(),
		AccountID:  accountID,
		Cutoff:     s.clock.Cutoff(now),
		EnqueuedAt: Normalize(now),
	}

	if err := s.restore.Enqueue(ctx, task); err != nil {
		return nil, errors.Wrap(err, "enqueue restore for account %s", accountID)
	}

	s.log.Debug().Str("task_id", task.ID).Str("account_id", accountID).Time("cutoff", task.Cutoff).Msg("content restore enqueued")

	return &task, nil
}

func (s *service) EnqueueRestore(ctx context.Context, accountID string, now time.Time) (*domain.RestoreTask, error) {
	account, err := s.store.Get(ctx, domain.KindAccount, accountID)
	if err != nil {
		return nil, err
	}
	if account.State != domain.StateActive {
		return nil, errors.Wrap(domain.ErrOwnerInactive, "account %s", accountID)
	}

	return s.enqueue(ctx, accountID, now)
}

func (s *service) RestoreOwnedContentWithinWindow(ctx context.Context, task domain.RestoreTask) (domain.RestoreResult, error) {
	var result domain.RestoreResult

	log := s.log.With().Str("task_id", task.ID).Str("account_id", task.AccountID).Logger()

	account, err := s.store.Get(ctx, domain.KindAccount, task.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("account is gone, nothing to restore")
			return result, nil
		}
		return result, err
	}
	if account.State != domain.StateActive {
		log.Info().Msg("account was deactivated again, skipping restore")
		return result, nil
	}

	filter := domain.ContentFilter{
		State:        domain.StateSoftDeleted,
		DeletedAfter: &task.Cutoff,
	}

	for _, kind := range domain.ContentKinds {
		afterID := ""
		for {
			page, err := s.store.ListOwned(ctx, kind, task.AccountID, filter, afterID, s.batchSize)
			if err != nil {
				return result, errors.Wrap(err, "list %s of account %s", kind, task.AccountID)
			}

			for _, item := range page {
				afterID = item.ID

				next, changed := s.machine.Restore(item, task.Cutoff, s.clock.Now())
				if !changed {
					result.Skipped++
					continue
				}

				err := s.store.Save(ctx, next, item)
				if errors.Is(err, domain.ErrConflict) {
					// changed underneath us, by the owner or a sweep
					result.Skipped++
					continue
				}
				if err != nil {
					return result, errors.Wrap(err, "restore %s %s", kind, item.ID)
				}

				result.Restored++
				metrics.Transition(string(kind), string(item.State), string(next.State))
			}

			if len(page) < s.batchSize {
				break
			}
		}
	}

	metrics.RestoreItems(result.Restored, result.Skipped)

	log.Info().Int64("restored", result.Restored).Int64("skipped", result.Skipped).Msg("content restore finished")

	s.bus.Publish(domain.EventTopicRestore, &domain.RestoreEvent{
		TaskID:    task.ID,
		AccountID: task.AccountID,
		Restored:  result.Restored,
		Skipped:   result.Skipped,
		At:        s.clock.Now(),
	})

	return result, nil
}

func (s *service) Status(ctx context.Context, kind domain.EntityKind, id string, now time.Time) (*domain.LifecycleStatus, error) {
	if !kind.Valid() {
		return nil, errors.Wrap(domain.ErrUnsupportedKind, "kind %q", kind)
	}

	e, err := s.store.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	status := s.machine.Status(*e, now)
	return &status, nil
}
