package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "chatledger:lock:"

// RedisLocker implements Locker with redsync mutexes.
type RedisLocker struct {
	rs  *redsync.Redsync
	ttl time.Duration
}

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// NewRedisLocker builds a locker over client. ttl bounds how long a crashed
// holder can keep a key.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		rs:  redsync.New(goredis.NewPool(client)),
		ttl: ttl,
	}
}

// Lock acquires the distributed mutex for key, retrying until ctx is done or
// redsync gives up.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	m := l.rs.NewMutex(redisKeyPrefix+key, redsync.WithExpiry(l.ttl))
	if err := m.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			if ok, err := m.Unlock(); !ok || err != nil {
				log.Warn().Err(err).Str("key", key).Msg("lock release failed")
			}
		})
	}, nil
}
