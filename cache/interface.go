package cache

import (
	"context"
	"time"

	"quantforge/backtest"
)

// ScoreCache 回测指标缓存接口。
// 同一数据集、同一策略参数、同一成本假设的回测结果是确定的，缓存命中直接复用。
type ScoreCache interface {
	// GetMetrics 查询缓存，未命中时返回 (nil, false, nil)
	GetMetrics(ctx context.Context, key string) (*backtest.Metrics, bool, error)

	// SetMetrics 写入缓存
	SetMetrics(ctx context.Context, key string, metrics *backtest.Metrics, ttl time.Duration) error

	// Ping 检查连接
	Ping(ctx context.Context) error

	// Close 关闭连接
	Close() error
}

// NopCache 空实现（未启用缓存时使用，零开销）
type NopCache struct{}

func NewNopCache() *NopCache {
	return &NopCache{}
}

func (n *NopCache) GetMetrics(ctx context.Context, key string) (*backtest.Metrics, bool, error) {
	return nil, false, nil
}

func (n *NopCache) SetMetrics(ctx context.Context, key string, metrics *backtest.Metrics, ttl time.Duration) error {
	return nil
}

func (n *NopCache) Ping(ctx context.Context) error {
	return nil
}

func (n *NopCache) Close() error {
	return nil
}
