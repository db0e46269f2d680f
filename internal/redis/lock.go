package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("business lock not acquired")
)

// Locker serializes engine runs per business. Slot rows are scoped by
// business_id, so two concurrent regenerations for the same business could
// both decide to top up the same range; the advisory lock is what prevents
// that across instances.
type Locker interface {
	WithBusinessLock(ctx context.Context, businessID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisBusinessLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBusinessLocker creates a locker that uses a per business Redis key.
// The TTL bounds how long a single engine run may hold the lock.
func NewRedisBusinessLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisBusinessLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisBusinessLocker) WithBusinessLock(ctx context.Context, businessID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:business:%s", businessID.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire business lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisBusinessLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release business lock: %w", err)
	}
	return nil
}
