package quota

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLocker_Exclusive(t *testing.T) {
	_, client := newTestRedis(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "broker-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "broker-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	_, ok, err = locker.TryLock(ctx, "broker-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other brokers are independent")

	release()

	_, ok, err = locker.TryLock(ctx, "broker-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	mr, client := newTestRedis(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()

	staleRelease, ok, err := locker.TryLock(ctx, "broker-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "broker-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "lease expired")

	staleRelease()

	assert.True(t, mr.Exists("brokerdesk:lock:broker-1"), "new holder's lease survives")
}

func TestRedisLocker_ConnectionError(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	_, ok, err := NewRedisLocker(client).TryLock(context.Background(), "broker-1", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	release, ok, err := locker.TryLock(ctx, "broker-1", 0)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = locker.TryLock(ctx, "broker-1", 0)
	assert.False(t, ok)

	release()

	release, ok, _ = locker.TryLock(ctx, "broker-1", 0)
	assert.True(t, ok)
	release()
}
