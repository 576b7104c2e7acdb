//go:build integration

package valkey

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Needs a running server: VALKEY_ADDR=localhost:6379 go test -tags integration ./internal/valkey
func newIntegrationQueue(t *testing.T) *RestoreQueue {
	t.Helper()
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set")
	}

	svc, err := NewService(domain.ValkeyConfig{
		Address:   addr,
		Password:  os.Getenv("VALKEY_PASSWORD"),
		KeyPrefix: "hiatus-test:" + uuid.NewString(),
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	q := NewRestoreQueue(logger.Mock(), svc)
	t.Cleanup(func() {
		c := svc.GetClient()
		c.Do(context.Background(), c.B().Del().Key(q.pendingKey, q.processingKey).Build())
	})
	return q
}

func TestRestoreQueue_Integration(t *testing.T) {
	q := newIntegrationQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, domain.RestoreTask{ID: "t1", AccountID: "a"}))
	require.NoError(t, q.Push(ctx, domain.RestoreTask{ID: "t2", AccountID: "b"}))

	d, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "t1", d.Task.ID, "fifo")

	// t1 is in flight: a restart recovers it ahead of t2
	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	d, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "t1", d.Task.ID)
	require.NoError(t, q.Ack(ctx, d))

	d, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "t2", d.Task.ID)

	d.Task.Attempts++
	require.NoError(t, q.Requeue(ctx, d))

	d, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Task.Attempts)
	require.NoError(t, q.Ack(ctx, d))

	d, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, d)

	n, err = q.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
