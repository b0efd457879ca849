package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/hugh/brokerdesk/internal/idgen"
	"github.com/hugh/brokerdesk/internal/syncutil"
	"github.com/redis/go-redis/v9"
)

// Locker provides per-key mutual exclusion for reconciliation runs.
// TryLock never blocks; ok is false when another holder has the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// RedisLocker is a lease in Redis, safe across worker processes. The lease
// expires after ttl if the holder dies; release only deletes the key while
// the caller still owns it.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "brokerdesk:lock:"}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := idgen.Hex(16)

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
	}
	return release, true, nil
}

// LocalLocker serializes within one process. Used when Redis is not
// configured; ttl is ignored.
type LocalLocker struct {
	mu syncutil.KeyedMutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	unlock, ok := l.mu.TryLock(key)
	return unlock, ok, nil
}
