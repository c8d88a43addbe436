package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "billing:lock:"

	// DefaultLockTTL время жизни блокировки, если владелец не освободил ее
	DefaultLockTTL = 30 * time.Second
	// DefaultPollInterval пауза между попытками захвата
	DefaultPollInterval = 50 * time.Millisecond
)

// ErrNotAcquired блокировку не удалось захватить до отмены контекста
var ErrNotAcquired = errors.New("lock not acquired")

// Снимаем блокировку, только если она все еще наша
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Продлеваем блокировку, только если она все еще наша
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker распределенная блокировка для нескольких экземпляров сервиса
type RedisLocker struct {
	client       redis.UniversalClient
	ttl          time.Duration
	pollInterval time.Duration
	log          *logger.Logger
}

// NewRedisLocker создает блокировку поверх Redis
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, log *logger.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{
		client:       client,
		ttl:          ttl,
		pollInterval: DefaultPollInterval,
		log:          log,
	}
}

// Lock захватывает ключ через SET NX PX и опрашивает Redis, пока ключ занят.
// Пока блокировка удерживается, ее TTL продлевается каждые ttl/3;
// ttl ограничивает только блокировку упавшего владельца.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()

	acquire := func() error {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("lock: failed to acquire %s: %w", key, err))
		}
		if !ok {
			return ErrNotAcquired
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewConstantBackOff(r.pollInterval), ctx)
	if err := backoff.Retry(acquire, policy); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		}
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(context.WithoutCancel(ctx), key, redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// Освобождаем даже после отмены запроса
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.log.Errorw("Failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}

// keepAlive продлевает блокировку, пока владелец не закроет stop
func (r *RedisLocker) keepAlive(ctx context.Context, key, redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := r.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			callCtx, cancel := context.WithTimeout(ctx, interval)
			extended, err := extendScript.Run(callCtx, r.client, []string{redisKey}, token, r.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				r.log.Warnw("Failed to extend lock", "key", key, "error", err)
				continue
			}
			if extended == 0 {
				r.log.Errorw("Lock expired while held", "key", key)
				return
			}
		}
	}
}
