package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
)

const idempotencyTable = "sys_idempotency"

// IdempotencyStaleAfter is how long a pending key may stay unanswered before
// another request may reclaim it.
const IdempotencyStaleAfter = time.Minute

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// IdempotencyRecord is one stored key. Both stores persist this shape.
type IdempotencyRecord struct {
	UserID      string            `db:"user_id" json:"userId"`
	Key         string            `db:"idempotency_key" json:"key"`
	Operation   string            `db:"operation" json:"operation"`
	Status      IdempotencyStatus `db:"status" json:"status"`
	RequestHash string            `db:"request_hash" json:"requestHash"`
	Response    json.RawMessage   `db:"response" json:"response,omitempty"`
	StatusCode  int               `db:"response_status" json:"statusCode,omitempty"`
	ContentType string            `db:"response_content_type" json:"contentType,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updatedAt"`
	ExpiresAt   time.Time         `db:"expires_at" json:"expiresAt"`
}

// IdempotencyReplay is the cached HTTP response for replay.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ResolveIdempotency decides what a request carrying an already stored key
// gets: a replay of the stored response, permission to proceed (reclaim), or
// an error when the key belongs to a different request or is still in flight.
func ResolveIdempotency(stored IdempotencyRecord, operation, requestHash string, now time.Time) (*IdempotencyReplay, bool, error) {
	if stored.Operation != operation || stored.RequestHash != requestHash {
		return nil, false, apperror.NewIdempotencyMismatch(stored.Key).
			WithDetail("stored_operation", stored.Operation).
			WithDetail("request_operation", operation)
	}

	switch stored.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		replay := &IdempotencyReplay{
			StatusCode:  stored.StatusCode,
			ContentType: stored.ContentType,
			Body:        stored.Response,
		}
		if replay.StatusCode == 0 {
			replay.StatusCode = http.StatusOK
		}
		if replay.ContentType == "" && replay.StatusCode != http.StatusNoContent {
			replay.ContentType = "application/json"
		}
		return replay, false, nil
	default:
		if now.Sub(stored.UpdatedAt) > IdempotencyStaleAfter {
			return nil, true, nil
		}
		return nil, false, apperror.NewIdempotencyConflict(stored.Key)
	}
}

// MarshalIdempotencyResponse encodes a response body for storage.
func MarshalIdempotencyResponse(response any) (json.RawMessage, error) {
	if response == nil {
		return nil, nil
	}
	body, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}
	return body, nil
}

// IdempotencyStore manages idempotency keys in sys_idempotency.
// It is the fallback when no redis is configured. Keys are scoped per user.
type IdempotencyStore struct {
	txManager *TxManager
	builder   squirrel.StatementBuilderType
	ttl       time.Duration
	now       func() time.Time
}

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		ttl:       ttl,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AcquireKey reserves key for this request. It returns (nil, nil) when the
// caller should run the handler and a replay when the key already finished.
func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*IdempotencyReplay, error) {
	now := s.now()
	q := s.txManager.GetQuerier(ctx)

	insert, args, err := s.builder.Insert(idempotencyTable).
		Columns("user_id", "idempotency_key", "operation", "status", "request_hash", "created_at", "updated_at", "expires_at").
		Values(userID, key, operation, IdempotencyStatusPending, requestHash, now, now, now.Add(s.ttl)).
		Suffix("ON CONFLICT (user_id, idempotency_key) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build acquire: %w", err)
	}
	tag, err := q.Exec(ctx, insert, args...)
	if err != nil {
		return nil, fmt.Errorf("acquire idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	sel, args, err := s.builder.Select("*").From(idempotencyTable).
		Where(squirrel.Eq{"user_id": userID, "idempotency_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build load: %w", err)
	}
	var stored IdempotencyRecord
	if err := pgxscan.Get(ctx, q, &stored, sel, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, errors.New("idempotency key vanished during acquire")
		}
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}

	replay, reclaim, err := ResolveIdempotency(stored, operation, requestHash, now)
	if err != nil || !reclaim {
		return replay, err
	}
	_, err = s.exec(ctx, s.builder.Update(idempotencyTable).
		Set("updated_at", now).
		Where(squirrel.Eq{"user_id": userID, "idempotency_key": key, "status": IdempotencyStatusPending}))
	if err != nil {
		return nil, fmt.Errorf("reclaim stale key: %w", err)
	}
	return nil, nil
}

// CompleteKey stores the successful response for replay.
func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, IdempotencyStatusSuccess, statusCode, contentType, response)
}

// FailKey stores the error response for replay.
func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error {
	return s.finish(ctx, key, IdempotencyStatusFailed, statusCode, contentType, response)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status IdempotencyStatus, statusCode int, contentType string, response any) error {
	body, err := MarshalIdempotencyResponse(response)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, s.builder.Update(idempotencyTable).
		SetMap(map[string]any{
			"status":                status,
			"response":              body,
			"response_status":       statusCode,
			"response_content_type": contentType,
			"updated_at":            s.now(),
		}).
		Where(squirrel.Eq{
			"user_id":         appctx.GetUserID(ctx),
			"idempotency_key": key,
			"status":          IdempotencyStatusPending,
		}))
	return err
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	return s.exec(ctx, s.builder.Delete(idempotencyTable).Where(squirrel.Lt{"expires_at": s.now()}))
}

func (s *IdempotencyStore) exec(ctx context.Context, b squirrel.Sqlizer) (int64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
