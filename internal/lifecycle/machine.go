package lifecycle

import (
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/pkg/errors"
)

// Machine holds the transitions of a single entity. The methods are pure:
// they return the next entity and whether anything changed, persisting is up
// to the caller.
type Machine struct {
	clock Clock
}

func NewMachine(clock Clock) Machine {
	return Machine{clock: clock}
}

// Deactivate soft deletes an active entity. An entity that is already soft
// deleted keeps its original timestamp.
func (m Machine) Deactivate(e domain.Entity, now time.Time) (domain.Entity, bool) {
	if e.State == domain.StateSoftDeleted {
		return e, false
	}

	now = Normalize(now)
	e.State = domain.StateSoftDeleted
	e.DeletedAt = &now
	e.UpdatedAt = now

	return e, true
}

// Reactivate brings a soft deleted entity back while it is inside the window.
func (m Machine) Reactivate(e domain.Entity, now time.Time) (domain.Entity, bool, error) {
	if e.State == domain.StateActive {
		return e, false, nil
	}

	if e.DeletedAt == nil || !m.clock.WithinWindow(*e.DeletedAt, now) {
		if e.Kind == domain.KindAccount {
			return e, false, errors.Wrap(domain.ErrAccountDeletionPeriodExceeded, "account %s", e.ID)
		}
		return e, false, errors.Wrap(domain.ErrLifecycleWindowExpired, "%s %s", e.Kind, e.ID)
	}

	return activate(e, now), true, nil
}

// Restore reactivates content soft deleted after cutoff. It is the transition
// the background restore applies once the owning account is back.
func (m Machine) Restore(e domain.Entity, cutoff, now time.Time) (domain.Entity, bool) {
	if e.State != domain.StateSoftDeleted || e.DeletedAt == nil || !e.DeletedAt.After(cutoff) {
		return e, false
	}

	return activate(e, now), true
}

// Purgeable reports whether the purge sweep may delete e at now.
func (m Machine) Purgeable(e domain.Entity, now time.Time) bool {
	if !e.Kind.IsContent() || e.State != domain.StateSoftDeleted || e.DeletedAt == nil {
		return false
	}
	return m.clock.PastWindow(*e.DeletedAt, now)
}

func (m Machine) Status(e domain.Entity, now time.Time) domain.LifecycleStatus {
	status := domain.LifecycleStatus{Entity: e, PurgeEligible: m.Purgeable(e, now)}
	if e.DeletedAt != nil {
		until := m.clock.RecoverableUntil(*e.DeletedAt)
		status.RecoverableUntil = &until
	}
	return status
}

func activate(e domain.Entity, now time.Time) domain.Entity {
	now = Normalize(now)
	e.State = domain.StateActive
	e.DeletedAt = nil
	e.UpdatedAt = now
	return e
}
