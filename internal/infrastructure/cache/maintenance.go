package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"retailledger/internal/domain/backup"
)

const maintenancePrefix = "maintenance:"

// MaintenanceLock implements backup.Guard with a redis lock per user.
type MaintenanceLock struct {
	client *redis.Client
	locker *redislock.Client
}

// NewMaintenanceLock creates the lock on top of client.
func NewMaintenanceLock(client *redis.Client) *MaintenanceLock {
	return &MaintenanceLock{client: client, locker: redislock.New(client)}
}

var _ backup.Guard = (*MaintenanceLock)(nil)

// Acquire obtains the user's lock without retrying.
func (m *MaintenanceLock) Acquire(ctx context.Context, userID string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := m.locker.Obtain(ctx, maintenancePrefix+userID, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, backup.ErrLocked
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock: %w", err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}

// Active reports whether any request currently holds the user's lock.
func (m *MaintenanceLock) Active(ctx context.Context, userID string) (bool, error) {
	n, err := m.client.Exists(ctx, maintenancePrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("check maintenance: %w", err)
	}
	return n > 0, nil
}
