package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"immersion-stats/internal/domain"
	"immersion-stats/internal/infra/metrics"
)

const versionTTL = 30 * 24 * time.Hour

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set задаёт значение.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.client.Set(ctx, key, value, ttl).Err()
	metrics.ObserveNetworkRequest("cache", "set", "redis", start, err)
	return err
}

// Get возвращает значение или domain.ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("cache", "get", "redis", start, nil)
		return nil, domain.ErrCacheMiss
	}
	metrics.ObserveNetworkRequest("cache", "get", "redis", start, err)
	return value, err
}

// Version возвращает поколение статистики пользователя; отсутствующий ключ — нулевое поколение.
func (c *RedisCache) Version(ctx context.Context, userID string) (int64, error) {
	start := time.Now()
	version, err := c.client.Get(ctx, VersionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("cache", "version", "redis", start, nil)
		return 0, nil
	}
	metrics.ObserveNetworkRequest("cache", "version", "redis", start, err)
	return version, err
}

// Bump увеличивает поколение, после чего все прежние ключи пользователя перестают читаться и истекают по TTL.
func (c *RedisCache) Bump(ctx context.Context, userID string) (int64, error) {
	start := time.Now()
	key := VersionKey(userID)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, versionTTL)
	_, err := pipe.Exec(ctx)
	metrics.ObserveNetworkRequest("cache", "bump", "redis", start, err)
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// VersionKey возвращает ключ счётчика поколений пользователя.
func VersionKey(userID string) string {
	return "stats:ver:" + userID
}
