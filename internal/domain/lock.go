package domain

import (
	"context"
	"time"
)

// Locker is a lease-based distributed lock. TryLock returns ok=false when another holder owns
// the key; the returned token must be passed to Release.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}
