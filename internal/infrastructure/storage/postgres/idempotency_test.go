package postgres

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
)

func TestResolveIdempotency(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	stored := func(status IdempotencyStatus, updated time.Time) IdempotencyRecord {
		return IdempotencyRecord{
			UserID:      "user-1",
			Key:         "k-1",
			Operation:   "POST /api/v1/sales",
			Status:      status,
			RequestHash: "abc",
			UpdatedAt:   updated,
		}
	}

	t.Run("finished key replays with defaults", func(t *testing.T) {
		replay, reclaim, err := ResolveIdempotency(stored(IdempotencyStatusSuccess, now), "POST /api/v1/sales", "abc", now)

		require.NoError(t, err)
		assert.False(t, reclaim)
		require.NotNil(t, replay)
		assert.Equal(t, http.StatusOK, replay.StatusCode)
		assert.Equal(t, "application/json", replay.ContentType)
	})

	t.Run("no content keeps empty content type", func(t *testing.T) {
		rec := stored(IdempotencyStatusSuccess, now)
		rec.StatusCode = http.StatusNoContent

		replay, _, err := ResolveIdempotency(rec, "POST /api/v1/sales", "abc", now)

		require.NoError(t, err)
		assert.Empty(t, replay.ContentType)
	})

	t.Run("failed key replays the error", func(t *testing.T) {
		rec := stored(IdempotencyStatusFailed, now)
		rec.StatusCode = http.StatusUnprocessableEntity
		rec.Response = []byte(`{"code":"INSUFFICIENT_STOCK"}`)

		replay, _, err := ResolveIdempotency(rec, "POST /api/v1/sales", "abc", now)

		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, replay.StatusCode)
		assert.JSONEq(t, `{"code":"INSUFFICIENT_STOCK"}`, string(replay.Body))
	})

	t.Run("different body is a mismatch", func(t *testing.T) {
		_, _, err := ResolveIdempotency(stored(IdempotencyStatusSuccess, now), "POST /api/v1/sales", "zzz", now)

		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeIdempotency, appErr.Code)
		assert.Equal(t, http.StatusConflict, appErr.HTTPStatus)
	})

	t.Run("pending key in flight conflicts", func(t *testing.T) {
		_, reclaim, err := ResolveIdempotency(stored(IdempotencyStatusPending, now.Add(-10*time.Second)), "POST /api/v1/sales", "abc", now)

		assert.False(t, reclaim)
		assert.Error(t, err)
	})

	t.Run("stale pending key is reclaimed", func(t *testing.T) {
		replay, reclaim, err := ResolveIdempotency(stored(IdempotencyStatusPending, now.Add(-2*IdempotencyStaleAfter)), "POST /api/v1/sales", "abc", now)

		require.NoError(t, err)
		assert.True(t, reclaim)
		assert.Nil(t, replay)
	})
}
