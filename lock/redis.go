package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLock 基于 Redis SETNX 的分布式锁。
// 每次加锁生成独立 token，释放和续期都用 Lua 校验持有权，
// 过期后被别人抢走的锁不会被误删。
type RedisLock struct {
	client *redis.Client
	prefix string

	mu       sync.Mutex
	lockKeys map[string]string // 持有的锁 -> token
}

// NewRedisLock 创建 Redis 分布式锁
func NewRedisLock(client *redis.Client, prefix string) *RedisLock {
	return &RedisLock{
		client:   client,
		prefix:   prefix,
		lockKeys: make(map[string]string),
	}
}

// generateToken 为每次加锁生成唯一 token
func generateToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Lock 获取锁，100ms 轮询直到成功或 ctx 结束
func (r *RedisLock) Lock(ctx context.Context, key string, ttl time.Duration) error {
	lockKey := r.prefix + key
	token := generateToken()

	// 先试一次，避免空等一个 tick
	ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		r.remember(key, token)
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
			if err != nil {
				return fmt.Errorf("redis setnx failed: %w", err)
			}
			if ok {
				r.remember(key, token)
				return nil
			}
		}
	}
}

// TryLock 尝试获取锁，立即返回
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lockKey := r.prefix + key
	token := generateToken()

	ok, err := r.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		r.remember(key, token)
	}
	return ok, nil
}

// Extend 延长锁的过期时间，只有持有者能续期
func (r *RedisLock) Extend(ctx context.Context, key string, ttl time.Duration) error {
	lockKey := r.prefix + key
	token, exists := r.heldToken(key)
	if !exists {
		return fmt.Errorf("lock not held: %s", key)
	}

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`

	result, err := r.client.Eval(ctx, script, []string{lockKey}, token, int(ttl.Seconds())).Result()
	if err != nil {
		return fmt.Errorf("redis eval failed: %w", err)
	}
	if result.(int64) == 0 {
		return fmt.Errorf("lock not held or expired: %s", key)
	}
	return nil
}

// Unlock 释放锁，只有持有者能释放
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	lockKey := r.prefix + key
	token, exists := r.heldToken(key)
	if !exists {
		return fmt.Errorf("lock not held: %s", key)
	}

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`

	result, err := r.client.Eval(ctx, script, []string{lockKey}, token).Result()
	if err != nil {
		return fmt.Errorf("redis eval failed: %w", err)
	}

	r.forget(key)
	if result.(int64) == 0 {
		return fmt.Errorf("lock not held or expired: %s", key)
	}
	return nil
}

// Close 关闭连接
func (r *RedisLock) Close() error {
	return r.client.Close()
}

// Ping 检查连接
func (r *RedisLock) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLock) remember(key, token string) {
	r.mu.Lock()
	r.lockKeys[key] = token
	r.mu.Unlock()
}

func (r *RedisLock) heldToken(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.lockKeys[key]
	return token, ok
}

func (r *RedisLock) forget(key string) {
	r.mu.Lock()
	delete(r.lockKeys, key)
	r.mu.Unlock()
}
