package lock

import (
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	l := logger.New(logger.DEBUG)
	l.SetOutput(io.Discard)
	return l
}

// exerciseMutualExclusion проверяет, что под одним ключом одновременно работает одна горутина
func exerciseMutualExclusion(t *testing.T, locker Locker, key string) {
	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			n := inside.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	exerciseMutualExclusion(t, locker, "auth0|abc123")
	assert.Equal(t, 0, locker.size())
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	locker := NewLocalLocker()

	unlockA, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()

	unlock, err := locker.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Equal(t, 0, locker.size())
}

func newTestRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, testLogger())
	exerciseMutualExclusion(t, locker, "test:"+time.Now().Format(time.RFC3339Nano))
}

func TestRedisLocker_ReleaseOnlyOwnToken(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, testLogger())
	key := "test:own:" + time.Now().Format(time.RFC3339Nano)

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	// Чужое значение под ключом не должно сниматься нашим unlock
	require.NoError(t, client.Set(context.Background(), keyPrefix+key, "someone-else", time.Second).Err())
	unlock()

	val, err := client.Get(context.Background(), keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestRedisLocker_ContextCancelled(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisLocker(client, time.Second, testLogger())
	key := "test:cancel:" + time.Now().Format(time.RFC3339Nano)

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, key)
	assert.ErrorIs(t, err, ErrNotAcquired)
}

func TestRedisLocker_ExtendsWhileHeld(t *testing.T) {
	client := newTestRedis(t)
	locker := NewRedisLocker(client, 300*time.Millisecond, testLogger())
	key := "test:extend:" + time.Now().Format(time.RFC3339Nano)

	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	// Держим дольше трех TTL: ключ должен продлеваться
	time.Sleep(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, key)
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	unlock()

	exists, err := client.Exists(context.Background(), keyPrefix+key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}
