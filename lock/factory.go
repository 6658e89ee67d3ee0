package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quantforge/logger"
)

// Config 寻优锁配置
type Config struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Addr       string `yaml:"addr" json:"addr"`
	Password   string `yaml:"password" json:"password"`
	DB         int    `yaml:"db" json:"db"`
	PoolSize   int    `yaml:"pool_size" json:"pool_size"`
	Prefix     string `yaml:"prefix" json:"prefix"`
	TTLSeconds int    `yaml:"ttl_seconds" json:"ttl_seconds"` // 锁过期时间（秒，默认60），长任务会自动续期
}

// DefaultTTL 返回配置的锁过期时间，未配置时默认60秒
func (c *Config) DefaultTTL() time.Duration {
	if c == nil || c.TTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

// NewDistributedLock 根据配置创建锁实例。
// 未启用或 Redis 不可达时退回 NopLock，退化成单实例语义。
func NewDistributedLock(config *Config) DistributedLock {
	if config == nil || !config.Enabled {
		return NewNopLock()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("⚠️ Redis 不可达, 寻优锁退化为单实例模式: %v", err)
		client.Close()
		return NewNopLock()
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "quantforge:lock:"
	}

	logger.Info("✅ Redis 寻优锁已启用: %s", config.Addr)
	return NewRedisLock(client, prefix)
}
