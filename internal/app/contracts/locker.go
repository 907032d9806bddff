package contracts

import (
	"context"
	"time"
)

// LockerService elects a single replica for background session work such as
// transcript archiving and the stale session sweep.
type LockerService interface {
	// TryLock returns the ownership token when the lock was acquired.
	TryLock(ctx context.Context, key string, expiration time.Duration) (bool, string, error)
	Unlock(ctx context.Context, key, lockValue string) error
	Refresh(ctx context.Context, key, lockValue string, expiration time.Duration) error
}
