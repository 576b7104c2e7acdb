package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/lifecycle"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/asaskevich/EventBus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, kind domain.EntityKind, id string) (*domain.Entity, error) {
	args := m.Called(ctx, kind, id)
	e, _ := args.Get(0).(*domain.Entity)
	return e, args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, next domain.Entity, prev domain.Entity) error {
	return m.Called(ctx, next, prev).Error(0)
}

func (m *mockStore) BulkUpdateState(ctx context.Context, kind domain.EntityKind, filter domain.ContentFilter, state domain.LifecycleState, ts *time.Time) (int64, error) {
	args := m.Called(ctx, kind, filter, state, ts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) BulkDelete(ctx context.Context, kind domain.EntityKind, filter domain.ContentFilter) (int64, error) {
	args := m.Called(ctx, kind, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockStore) ListOwned(ctx context.Context, kind domain.EntityKind, ownerID string, filter domain.ContentFilter, afterID string, limit int) ([]domain.Entity, error) {
	args := m.Called(ctx, kind, ownerID, filter, afterID, limit)
	e, _ := args.Get(0).([]domain.Entity)
	return e, args.Error(1)
}

func (m *mockStore) Transaction(ctx context.Context, fn func(store domain.EntityStore) error) error {
	return fn(m)
}

var jobNow = time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC)

func TestCascadeSweepJob(t *testing.T) {
	store := &mockStore{}
	clock := lifecycle.NewClock(90)
	cutoff := jobNow.Add(-90 * 24 * time.Hour)

	filter := domain.ContentFilter{State: domain.StateActive, OwnerDeactivatedAtOrBefore: &cutoff}
	tsIsNow := mock.MatchedBy(func(ts *time.Time) bool { return ts != nil && ts.Equal(jobNow) })

	store.On("BulkUpdateState", mock.Anything, domain.KindPost, filter, domain.StateSoftDeleted, tsIsNow).Return(int64(4), nil).Once()
	store.On("BulkUpdateState", mock.Anything, domain.KindComment, filter, domain.StateSoftDeleted, tsIsNow).Return(int64(9), nil).Once()

	bus := EventBus.New()
	var events []*domain.SweepEvent
	require.NoError(t, bus.Subscribe(domain.EventTopicSweep, func(evt *domain.SweepEvent) {
		events = append(events, evt)
	}))

	job := &CascadeSweepJob{Name: JobCascade, Log: logger.Mock().With().Logger(), Store: store, Clock: clock, Bus: bus}
	report := job.Sweep(context.Background(), jobNow)

	store.AssertExpectations(t)
	assert.Equal(t, JobCascade, report.Job)
	assert.True(t, report.Cutoff.Equal(cutoff))
	assert.Equal(t, int64(13), report.Affected())
	assert.False(t, report.Failed())
	require.Len(t, events, 2)
	assert.Equal(t, domain.KindPost, events[0].Kind)
	assert.Equal(t, int64(9), events[1].Affected)
}

func TestPurgeSweepJob_FailureDoesNotBlockNextKind(t *testing.T) {
	store := &mockStore{}
	clock := lifecycle.NewClock(90)
	cutoff := jobNow.Add(-90 * 24 * time.Hour)
	filter := domain.ContentFilter{State: domain.StateSoftDeleted, DeletedAtOrBefore: &cutoff}

	store.On("BulkDelete", mock.Anything, domain.KindPost, filter).Return(int64(0), errors.New("deadlock detected")).Once()
	store.On("BulkDelete", mock.Anything, domain.KindComment, filter).Return(int64(2), nil).Once()

	bus := EventBus.New()
	var failed []*domain.SweepEvent
	require.NoError(t, bus.Subscribe(domain.EventTopicSweepFailed, func(evt *domain.SweepEvent) {
		failed = append(failed, evt)
	}))

	job := &PurgeSweepJob{Name: JobPurge, Log: logger.Mock().With().Logger(), Store: store, Clock: clock, Bus: bus}
	report := job.Sweep(context.Background(), jobNow)

	store.AssertExpectations(t)
	assert.True(t, report.Failed())
	require.Len(t, report.Kinds, 2)
	assert.Contains(t, report.Kinds[0].Error, "deadlock detected")
	assert.Equal(t, int64(2), report.Kinds[1].Affected)

	require.Len(t, failed, 1)
	assert.Equal(t, domain.KindPost, failed[0].Kind)
	assert.Equal(t, JobPurge, failed[0].Job)
}
