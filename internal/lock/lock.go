// Package lock provides short-lived named locks that keep two imports of the
// same document from running at once.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"actionplan/pkg/platform/sentinel"
)

// Release frees a held lock. Releasing an expired or stolen lock is a no-op.
type Release func(ctx context.Context) error

const keyPrefix = "actionplan:lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements locks with SET NX PX.
type RedisLocker struct {
	client redis.Scripter
	setter redis.Cmdable
}

func NewRedis(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client, setter: client}
}

// Acquire takes the named lock for ttl. It returns sentinel.ErrLocked when
// the lock is held and sentinel.ErrUnavailable when Redis cannot be reached.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (Release, error) {
	key := keyPrefix + name
	token := uuid.NewString()
	ok, err := l.setter.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w: %v", name, sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock %s: %w", name, sentinel.ErrLocked)
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", name, err)
		}
		return nil
	}, nil
}

// MemoryLocker is an in-process Locker for single-instance deployments and
// tests.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]heldLock
	clock func() time.Time
}

type heldLock struct {
	token   string
	expires time.Time
}

func NewMemory() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]heldLock), clock: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if h, ok := l.held[name]; ok && now.Before(h.expires) {
		return nil, fmt.Errorf("acquire lock %s: %w", name, sentinel.ErrLocked)
	}
	token := uuid.NewString()
	l.held[name] = heldLock{token: token, expires: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if h, ok := l.held[name]; ok && h.token == token {
			delete(l.held, name)
		}
		return nil
	}, nil
}
