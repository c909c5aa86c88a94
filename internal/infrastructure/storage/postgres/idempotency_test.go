package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmastock/internal/core/apperror"
)

func TestIdempotencyStore_Resolve(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	store := NewIdempotencyStore(nil, time.Hour)
	store.now = func() time.Time { return now }

	record := func(status IdempotencyStatus) *IdempotencyRecord {
		return &IdempotencyRecord{
			Key:         "k-1",
			UserID:      "u-1",
			Operation:   "POST /api/v1/ledger/sales",
			Status:      status,
			RequestHash: "abc",
			UpdatedAt:   now.Add(-10 * time.Second),
		}
	}
	ctx := context.Background()

	t.Run("completed key replays", func(t *testing.T) {
		r := record(IdempotencyStatusSuccess)
		r.Response = []byte(`{"id":"1"}`)
		r.StatusCode = 201

		replay, err := store.resolve(ctx, r, "u-1", r.Operation, "abc")
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, 201, replay.StatusCode)
		assert.Equal(t, "application/json", replay.ContentType)
		assert.JSONEq(t, `{"id":"1"}`, string(replay.Body))
	})

	t.Run("different body is a mismatch", func(t *testing.T) {
		r := record(IdempotencyStatusSuccess)
		_, err := store.resolve(ctx, r, "u-1", r.Operation, "other")
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	t.Run("different user is a mismatch", func(t *testing.T) {
		r := record(IdempotencyStatusSuccess)
		_, err := store.resolve(ctx, r, "u-2", r.Operation, "abc")
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency))
	})

	t.Run("fresh pending key conflicts", func(t *testing.T) {
		r := record(IdempotencyStatusPending)
		_, err := store.resolve(ctx, r, "u-1", r.Operation, "abc")
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, 409, appErr.HTTPStatus)
	})
}

func TestNormalizeReplay(t *testing.T) {
	assert.Equal(t, 200, normalizeReplayStatus(0))
	assert.Equal(t, 204, normalizeReplayStatus(204))
	assert.Equal(t, "application/json", normalizeReplayContentType(""))
	assert.Equal(t, "text/csv", normalizeReplayContentType("text/csv"))
}
