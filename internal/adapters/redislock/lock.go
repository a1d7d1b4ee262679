// Package redislock implements domain.Locker on a single Redis key per lock.
package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eventbooking/internal/domain"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// client is the subset of *redis.Client the locker uses.
type client interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

type Locker struct {
	client client
	script *redis.Script
}

var _ domain.Locker = (*Locker)(nil)

// New returns a Locker on rdb, or nil when rdb is nil.
func New(rdb *redis.Client) *Locker {
	if rdb == nil {
		return nil
	}
	return newLocker(rdb)
}

func newLocker(c client) *Locker {
	return &Locker{client: c, script: redis.NewScript(releaseScript)}
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release deletes key only if it still holds token, so an expired lease taken over by another
// holder is left alone.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
