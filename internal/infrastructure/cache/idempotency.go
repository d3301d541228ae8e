package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	appctx "retailledger/internal/core/context"
	"retailledger/internal/infrastructure/storage/postgres"
)

const idempotencyPrefix = "idem:"

// IdempotencyStore keeps idempotency keys in redis with a TTL. It follows
// the same contract as postgres.IdempotencyStore.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a redis-backed idempotency store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(userID, key string) string {
	return idempotencyPrefix + userID + ":" + key
}

// AcquireKey reserves key for this request, or returns the stored replay.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error) {
	now := time.Now().UTC()
	record := postgres.IdempotencyRecord{
		UserID:      userID,
		Key:         key,
		Operation:   operation,
		Status:      postgres.IdempotencyStatusPending,
		RequestHash: requestHash,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}

	redisKey := idempotencyKey(userID, key)
	acquired, err := s.client.SetNX(ctx, redisKey, raw, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if acquired {
		return nil, nil
	}

	stored, err := s.load(ctx, redisKey)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		// Expired between SETNX and GET.
		return nil, s.client.Set(ctx, redisKey, raw, s.ttl).Err()
	}

	replay, reclaim, err := postgres.ResolveIdempotency(*stored, operation, requestHash, now)
	if err != nil || !reclaim {
		return replay, err
	}
	return nil, s.client.Set(ctx, redisKey, raw, s.ttl).Err()
}

// CompleteKey stores the successful response for replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, postgres.IdempotencyStatusSuccess, statusCode, contentType, response)
}

// FailKey stores the error response for replay.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, postgres.IdempotencyStatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status postgres.IdempotencyStatus, statusCode int, contentType string, response any) error {
	redisKey := idempotencyKey(appctx.GetUserID(ctx), key)
	stored, err := s.load(ctx, redisKey)
	if err != nil || stored == nil {
		return err
	}
	body, err := postgres.MarshalIdempotencyResponse(response)
	if err != nil {
		return err
	}
	stored.Response = body
	stored.Status = status
	stored.StatusCode = statusCode
	stored.ContentType = contentType
	stored.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	return s.client.Set(ctx, redisKey, raw, redis.KeepTTL).Err()
}

func (s *IdempotencyStore) load(ctx context.Context, redisKey string) (*postgres.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	var record postgres.IdempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &record, nil
}
