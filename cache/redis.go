package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quantforge/backtest"
)

// RedisCache Redis 回测指标缓存实现。
// 值用 gob 编码：指标里的 ±Inf（如只赚不亏时的利润因子）JSON 放不进去，gob 可以精确往返。
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache 创建 Redis 缓存
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "quantforge:score:"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
	}
}

// GetMetrics 查询缓存，未命中时返回 (nil, false, nil)
func (r *RedisCache) GetMetrics(ctx context.Context, key string) (*backtest.Metrics, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var metrics backtest.Metrics
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&metrics); err != nil {
		return nil, false, fmt.Errorf("解码缓存指标失败: %w", err)
	}

	return &metrics, true, nil
}

// SetMetrics 写入缓存
func (r *RedisCache) SetMetrics(ctx context.Context, key string, metrics *backtest.Metrics, ttl time.Duration) error {
	if metrics == nil {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(metrics); err != nil {
		return fmt.Errorf("编码缓存指标失败: %w", err)
	}

	if err := r.client.Set(ctx, r.prefix+key, buf.Bytes(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Ping 检查连接
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 关闭连接
func (r *RedisCache) Close() error {
	return r.client.Close()
}
