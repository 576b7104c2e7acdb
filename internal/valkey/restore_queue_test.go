package valkey

import (
	"testing"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskPayload(t *testing.T) {
	task := domain.RestoreTask{
		ID:         "01HZX4J6M6V4Y7Q2S9ZK3T1W8B",
		AccountID:  "acc",
		Cutoff:     time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
		EnqueuedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Attempts:   2,
	}

	payload, err := encodeTask(task)
	require.NoError(t, err)
	assert.Contains(t, payload, `"account_id":"acc"`)

	_, err = decodeTask("not json")
	assert.Error(t, err)
}
