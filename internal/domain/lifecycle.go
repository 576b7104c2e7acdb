package domain

import (
	"context"
	"time"
)

// LifecycleState is the persisted lifecycle state of an account or content item.
// Purged content is not a stored state: the row no longer exists.
type LifecycleState string

const (
	StateActive      LifecycleState = "active"
	StateSoftDeleted LifecycleState = "soft_deleted"
)

// EntityKind names the tables the lifecycle operates on.
type EntityKind string

const (
	KindAccount EntityKind = "account"
	KindPost    EntityKind = "post"
	KindComment EntityKind = "comment"
)

// ContentKinds lists the content item kinds in the order sweeps process them.
var ContentKinds = []EntityKind{KindPost, KindComment}

func (k EntityKind) Valid() bool {
	switch k {
	case KindAccount, KindPost, KindComment:
		return true
	}
	return false
}

func (k EntityKind) IsContent() bool {
	return k == KindPost || k == KindComment
}

// Entity is the kind-agnostic lifecycle view of an account or content item.
// For accounts OwnerID equals ID and DeletedAt carries deactivated_at.
type Entity struct {
	Kind      EntityKind     `json:"kind"`
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	State     LifecycleState `json:"lifecycle_state"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ContentFilter is the predicate of a set-based content operation. Zero-valued
// fields do not constrain the statement.
type ContentFilter struct {
	State LifecycleState

	// DeletedAtOrBefore matches deleted_at <= value.
	DeletedAtOrBefore *time.Time
	// DeletedAfter matches deleted_at > value.
	DeletedAfter *time.Time

	// OwnerDeactivatedAtOrBefore restricts the statement to content whose owning
	// account is soft deleted with deactivated_at <= value.
	OwnerDeactivatedAtOrBefore *time.Time
}

// EntityStore is the persistence contract of the lifecycle core.
type EntityStore interface {
	// Get returns ErrNotFound when no row matches.
	Get(ctx context.Context, kind EntityKind, id string) (*Entity, error)
	// Save writes next only if the row still matches prev's state and timestamp.
	// A stale prev yields ErrConflict.
	Save(ctx context.Context, next Entity, prev Entity) error
	BulkUpdateState(ctx context.Context, kind EntityKind, filter ContentFilter, state LifecycleState, ts *time.Time) (int64, error)
	BulkDelete(ctx context.Context, kind EntityKind, filter ContentFilter) (int64, error)
	// ListOwned pages through content owned by ownerID ordered by id, starting
	// after afterID.
	ListOwned(ctx context.Context, kind EntityKind, ownerID string, filter ContentFilter, afterID string, limit int) ([]Entity, error)
	Transaction(ctx context.Context, fn func(store EntityStore) error) error
}

// LifecycleStatus is an entity together with its recovery deadlines.
type LifecycleStatus struct {
	Entity
	RecoverableUntil *time.Time `json:"recoverable_until,omitempty"`
	PurgeEligible    bool       `json:"purge_eligible"`
}
