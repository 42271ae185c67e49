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

// releaseScript deletes the key only while it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the key still carries our token
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker coordinates sync passes across instances with SET NX PX leases.
// A held lease is extended every ttl/3 until unlock, so a pass that outlives
// one ttl keeps its platform.
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisLocker connects to the Redis at url (redis://host:port/db)
func NewRedisLocker(url string, logger *zap.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisLockerWithClient(client, "", logger), nil
}

func NewRedisLockerWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = "orderhub:sync-lock:"
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix, logger: logger}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	redisKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	stopRenewing := keepAlive(ttl, func() bool {
		renewCtx, cancel := context.WithTimeout(context.Background(), ttl/3)
		defer cancel()
		extended, err := extendScript.Run(renewCtx, l.client, []string{redisKey}, token, ttl.Milliseconds()).Int()
		if err != nil {
			l.logger.Warn("Failed to extend sync lock", zap.String("key", key), zap.Error(err))
			return true
		}
		if extended == 0 {
			l.logger.Error("Sync lock lost before unlock", zap.String("key", key))
			return false
		}
		return true
	})

	var once sync.Once
	unlock := func() {
		once.Do(func() {
			stopRenewing()
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("Failed to release sync lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
	return unlock, true, nil
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
