package roomlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis used by Redis. *redis.Client and
// *redis.ClusterClient satisfy it.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	redis.Scripter
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that another process re-acquired is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig tunes the distributed lock.
type RedisConfig struct {
	// KeyPrefix namespaces lock keys. Defaults to "roombooking:lock:room:".
	KeyPrefix string
	// TTL bounds how long a crashed holder can block a room. It must exceed
	// the longest admission critical section.
	TTL time.Duration
	// RetryInterval is the polling period while the lock is held elsewhere.
	RetryInterval time.Duration
	// ReleaseTimeout bounds the release round trip.
	ReleaseTimeout time.Duration
}

// Redis is a cross-process Locker using SET NX PX with a random token per
// acquisition.
type Redis struct {
	client RedisClient
	config RedisConfig
	logger *slog.Logger
}

var _ Locker = (*Redis)(nil)

// NewRedis builds a Redis locker, filling unset config fields with defaults.
func NewRedis(client RedisClient, config RedisConfig, logger *slog.Logger) *Redis {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "roombooking:lock:room:"
	}
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 25 * time.Millisecond
	}
	if config.ReleaseTimeout <= 0 {
		config.ReleaseTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, config: config, logger: logger.With("component", "roomlock")}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, roomID string) (func(), error) {
	key := r.config.KeyPrefix + roomID
	token := uuid.NewString()

	ticker := time.NewTicker(r.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.config.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("roomlock: acquire %s: %w", key, err)
		}
		if ok {
			return r.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Redis) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, token) })
	}
}

func (r *Redis) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.ReleaseTimeout)
	defer cancel()
	deleted, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.logger.Warn("failed to release room lock", "key", key, "error", err)
		return
	}
	if deleted == 0 {
		r.logger.Warn("room lock expired before release", "key", key, "ttl", r.config.TTL)
	}
}
