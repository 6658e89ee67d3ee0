package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"quantforge/logger"
)

// Config 缓存配置
type Config struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	TTLHours int    `yaml:"ttl_hours" json:"ttl_hours"` // 缓存有效期（小时，默认24）
}

// DefaultTTL 返回配置的缓存有效期，未配置时默认24小时
func (c *Config) DefaultTTL() time.Duration {
	if c == nil || c.TTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// NewScoreCache 根据配置创建缓存实例。
// 未启用或 Redis 不可达时退回 NopCache，缓存失效只影响性能不影响结果。
func NewScoreCache(config *Config) ScoreCache {
	if config == nil || !config.Enabled {
		return NewNopCache()
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
		logger.Warn("⚠️ Redis 不可达, 回测缓存已禁用: %v", err)
		client.Close()
		return NewNopCache()
	}

	logger.Info("✅ Redis 回测缓存已启用: %s", config.Addr)
	return NewRedisCache(client, config.Prefix)
}
