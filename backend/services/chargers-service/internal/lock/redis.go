package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultLeaseTTL     = 10 * time.Second
	defaultPollInterval = 25 * time.Millisecond
	releaseTimeout      = 2 * time.Second
)

// releaseScript deletes the lease only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease is a Locker shared by every instance talking to the same Redis.
// The lease expires after ttl so a crashed holder cannot block a charger forever.
type RedisLease struct {
	client *redis.Client
	ttl    time.Duration
	poll   time.Duration
	logger *zap.Logger
}

// NewRedisLease returns a lease locker. Zero durations fall back to defaults.
func NewRedisLease(client *redis.Client, ttl, poll time.Duration, logger *zap.Logger) *RedisLease {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &RedisLease{client: client, ttl: ttl, poll: poll, logger: logger}
}

func (l *RedisLease) key(key string) string {
	return fmt.Sprintf("chargers:lock:%s", key)
}

// Acquire polls SET NX until the lease is taken or ctx is done.
func (l *RedisLease) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := l.key(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
			}
			return nil, fmt.Errorf("lock: set lease %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *RedisLease) releaser(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("release charger lease", zap.String("key", redisKey), zap.Error(err))
			}
		})
	}
}
