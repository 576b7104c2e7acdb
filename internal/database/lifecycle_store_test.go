package database

import (
	"context"
	"testing"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var storeNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type storeFixture struct {
	store   *LifecycleStore
	content domain.ContentRepo
	account domain.AccountRepo
}

func newStoreFixture(t *testing.T) storeFixture {
	t.Helper()
	db := setupTestDBInstance(t)
	log := logger.Mock()

	return storeFixture{
		store:   NewLifecycleStore(log, db),
		content: NewContentRepo(log, db),
		account: NewAccountRepo(log, db),
	}
}

func (f storeFixture) addAccount(t *testing.T, id string, deactivatedAt *time.Time) {
	t.Helper()
	a := domain.Account{ID: id, Handle: id, LifecycleState: domain.StateActive}
	if deactivatedAt != nil {
		a.LifecycleState = domain.StateSoftDeleted
		a.DeactivatedAt = deactivatedAt
	}
	require.NoError(t, f.account.Store(context.Background(), a))
}

func (f storeFixture) addPost(t *testing.T, id, owner string, deletedAt *time.Time) {
	t.Helper()
	p := domain.Post{ID: id, AccountID: owner, LifecycleState: domain.StateActive}
	if deletedAt != nil {
		p.LifecycleState = domain.StateSoftDeleted
		p.DeletedAt = deletedAt
	}
	require.NoError(t, f.content.StorePost(context.Background(), p))
}

func (f storeFixture) addComment(t *testing.T, id, owner string, deletedAt *time.Time) {
	t.Helper()
	c := domain.Comment{ID: id, AccountID: owner, LifecycleState: domain.StateActive}
	if deletedAt != nil {
		c.LifecycleState = domain.StateSoftDeleted
		c.DeletedAt = deletedAt
	}
	require.NoError(t, f.content.StoreComment(context.Background(), c))
}

func ago(d time.Duration) *time.Time {
	t := storeNow.Add(-d)
	return &t
}

const day = 24 * time.Hour

func TestLifecycleStore_Get(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	f.addAccount(t, "acc", ago(3*day))
	f.addPost(t, "p1", "acc", nil)

	a, err := f.store.Get(ctx, domain.KindAccount, "acc")
	require.NoError(t, err)
	assert.Equal(t, domain.KindAccount, a.Kind)
	assert.Equal(t, "acc", a.OwnerID)
	assert.Equal(t, domain.StateSoftDeleted, a.State)
	require.NotNil(t, a.DeletedAt)
	assert.True(t, a.DeletedAt.Equal(*ago(3 * day)))

	p, err := f.store.Get(ctx, domain.KindPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, "acc", p.OwnerID)
	assert.Equal(t, domain.StateActive, p.State)
	assert.Nil(t, p.DeletedAt)

	_, err = f.store.Get(ctx, domain.KindComment, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.store.Get(ctx, domain.EntityKind("reaction"), "p1")
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
}

func TestLifecycleStore_Save(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.addPost(t, "p1", "acc", nil)

	prev, err := f.store.Get(ctx, domain.KindPost, "p1")
	require.NoError(t, err)

	next := *prev
	next.State = domain.StateSoftDeleted
	next.DeletedAt = &storeNow
	next.UpdatedAt = storeNow

	require.NoError(t, f.store.Save(ctx, next, *prev))

	got, err := f.store.Get(ctx, domain.KindPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSoftDeleted, got.State)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(storeNow))

	t.Run("stale prev conflicts", func(t *testing.T) {
		other := next
		other.DeletedAt = ago(time.Hour)
		err := f.store.Save(ctx, other, *prev)
		assert.ErrorIs(t, err, domain.ErrConflict)

		got, err := f.store.Get(ctx, domain.KindPost, "p1")
		require.NoError(t, err)
		assert.True(t, got.DeletedAt.Equal(storeNow), "timestamp must not be overwritten")
	})

	t.Run("matching timestamp reactivates", func(t *testing.T) {
		active := *got
		active.State = domain.StateActive
		active.DeletedAt = nil
		active.UpdatedAt = storeNow.Add(time.Minute)

		require.NoError(t, f.store.Save(ctx, active, *got))

		after, err := f.store.Get(ctx, domain.KindPost, "p1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateActive, after.State)
		assert.Nil(t, after.DeletedAt)
	})

	t.Run("account", func(t *testing.T) {
		f.addAccount(t, "acc2", nil)
		prev, err := f.store.Get(ctx, domain.KindAccount, "acc2")
		require.NoError(t, err)

		next := *prev
		next.State = domain.StateSoftDeleted
		next.DeletedAt = &storeNow
		next.UpdatedAt = storeNow
		require.NoError(t, f.store.Save(ctx, next, *prev))

		a, err := f.account.FindByID(ctx, "acc2")
		require.NoError(t, err)
		assert.Equal(t, domain.StateSoftDeleted, a.LifecycleState)
		require.NotNil(t, a.DeactivatedAt)
		assert.True(t, a.DeactivatedAt.Equal(storeNow))
	})
}

func TestLifecycleStore_BulkUpdateState_Cascade(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	window := 90 * day
	cutoff := storeNow.Add(-window)

	f.addAccount(t, "old", ago(91*day))
	f.addAccount(t, "recent", ago(10*day))
	f.addAccount(t, "live", nil)

	f.addPost(t, "old-active", "old", nil)
	f.addPost(t, "old-deleted", "old", ago(95*day))
	f.addComment(t, "old-comment", "old", nil)
	f.addPost(t, "recent-active", "recent", nil)
	f.addPost(t, "live-active", "live", nil)

	filter := domain.ContentFilter{State: domain.StateActive, OwnerDeactivatedAtOrBefore: &cutoff}

	n, err := f.store.BulkUpdateState(ctx, domain.KindPost, filter, domain.StateSoftDeleted, &storeNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.store.BulkUpdateState(ctx, domain.KindComment, filter, domain.StateSoftDeleted, &storeNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	e, err := f.store.Get(ctx, domain.KindPost, "old-active")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSoftDeleted, e.State)
	assert.True(t, e.DeletedAt.Equal(storeNow))

	// already soft deleted keeps its own timer
	e, err = f.store.Get(ctx, domain.KindPost, "old-deleted")
	require.NoError(t, err)
	assert.True(t, e.DeletedAt.Equal(*ago(95 * day)))

	for _, id := range []string{"recent-active", "live-active"} {
		e, err = f.store.Get(ctx, domain.KindPost, id)
		require.NoError(t, err)
		assert.Equal(t, domain.StateActive, e.State, id)
		assert.Nil(t, e.DeletedAt, id)
	}

	// second run is a no-op
	n, err = f.store.BulkUpdateState(ctx, domain.KindPost, filter, domain.StateSoftDeleted, &storeNow)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestLifecycleStore_BulkDelete(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	cutoff := storeNow.Add(-90 * day)

	f.addPost(t, "expired", "acc", ago(90*day))
	f.addPost(t, "young", "acc", ago(90*day-time.Second))
	f.addPost(t, "active", "acc", nil)
	f.addComment(t, "expired-comment", "acc", ago(200*day))

	filter := domain.ContentFilter{State: domain.StateSoftDeleted, DeletedAtOrBefore: &cutoff}

	n, err := f.store.BulkDelete(ctx, domain.KindPost, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.store.BulkDelete(ctx, domain.KindComment, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.store.Get(ctx, domain.KindPost, "expired")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.store.Get(ctx, domain.KindPost, "young")
	assert.NoError(t, err)
	_, err = f.store.Get(ctx, domain.KindPost, "active")
	assert.NoError(t, err)
}

func TestLifecycleStore_BulkRefusesUnsafeInput(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()

	_, err := f.store.BulkDelete(ctx, domain.KindPost, domain.ContentFilter{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.store.BulkDelete(ctx, domain.KindAccount, domain.ContentFilter{State: domain.StateSoftDeleted})
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)

	_, err = f.store.BulkUpdateState(ctx, domain.KindAccount, domain.ContentFilter{State: domain.StateActive}, domain.StateSoftDeleted, &storeNow)
	assert.ErrorIs(t, err, domain.ErrUnsupportedKind)
}

func TestLifecycleStore_ListOwned(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	cutoff := storeNow.Add(-90 * day)

	f.addPost(t, "a", "acc", ago(1*day))
	f.addPost(t, "b", "acc", ago(2*day))
	f.addPost(t, "c", "acc", ago(3*day))
	f.addPost(t, "d", "acc", ago(120*day))
	f.addPost(t, "e", "acc", nil)
	f.addPost(t, "f", "other", ago(1*day))

	filter := domain.ContentFilter{State: domain.StateSoftDeleted, DeletedAfter: &cutoff}

	page, err := f.store.ListOwned(ctx, domain.KindPost, "acc", filter, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, err = f.store.ListOwned(ctx, domain.KindPost, "acc", filter, "b", 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "c", page[0].ID)

	page, err = f.store.ListOwned(ctx, domain.KindPost, "acc", filter, "c", 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestLifecycleStore_Transaction(t *testing.T) {
	f := newStoreFixture(t)
	ctx := context.Background()
	f.addPost(t, "p1", "acc", nil)

	boom := errors.New("boom")
	err := f.store.Transaction(ctx, func(store domain.EntityStore) error {
		prev, err := store.Get(ctx, domain.KindPost, "p1")
		if err != nil {
			return err
		}
		next := *prev
		next.State = domain.StateSoftDeleted
		next.DeletedAt = &storeNow
		next.UpdatedAt = storeNow
		if err := store.Save(ctx, next, *prev); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	e, err := f.store.Get(ctx, domain.KindPost, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, e.State, "rolled back")
}
