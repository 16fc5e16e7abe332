// Package guard tracks in-flight gateway operations across connector instances.
package guard

import (
	"context"
	"sync"
	"time"

	"github.com/DanielPopoola/charge-connector/internal/core/ports"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "charge_inflight:"

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Client is the subset of redis.Cmdable the guard uses.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisGuard marks a charge as busy with SET NX under a per-acquire token. The
// TTL frees keys left behind by a crashed instance, and a release after that
// TTL never removes a key another instance has since taken.
type RedisGuard struct {
	client Client
	ttl    time.Duration
	logger *zap.Logger

	mu     sync.Mutex
	tokens map[string]string
}

var _ ports.InFlightGuard = (*RedisGuard)(nil)

func NewRedisGuard(client Client, ttl time.Duration, logger *zap.Logger) *RedisGuard {
	return &RedisGuard{
		client: client,
		ttl:    ttl,
		logger: logger,
		tokens: make(map[string]string),
	}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, keyPrefix+key, token, g.ttl).Result()
	if err != nil || !ok {
		return false, err
	}

	g.mu.Lock()
	g.tokens[key] = token
	g.mu.Unlock()
	return true, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) {
	g.mu.Lock()
	token, ok := g.tokens[key]
	delete(g.tokens, key)
	g.mu.Unlock()
	if !ok {
		return
	}

	deleted, err := g.client.Eval(context.WithoutCancel(ctx), releaseScript, []string{keyPrefix + key}, token).Int64()
	if err != nil {
		g.logger.Warn("failed to release in-flight key",
			zap.String("key", key),
			zap.Error(err))
		return
	}
	if deleted == 0 {
		g.logger.Warn("in-flight key expired before release",
			zap.String("key", key),
			zap.Duration("ttl", g.ttl))
	}
}
