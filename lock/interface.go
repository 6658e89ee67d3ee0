package lock

import (
	"context"
	"time"
)

// DistributedLock 跨实例互斥锁。多个 quantforge 实例共用一个
// Redis 时，用它把吃满 CPU 的寻优任务串行化，避免互相挤占。
type DistributedLock interface {
	// Lock 获取锁，阻塞直到成功或 ctx 结束
	Lock(ctx context.Context, key string, ttl time.Duration) error

	// TryLock 尝试获取锁，立即返回。true 表示拿到了锁
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Extend 延长已持有锁的过期时间，长任务靠它续期
	Extend(ctx context.Context, key string, ttl time.Duration) error

	// Unlock 释放锁，只有持有者能释放
	Unlock(ctx context.Context, key string) error

	// Close 关闭底层连接
	Close() error
}

// NopLock 空实现。单实例部署时没有别人可争，所有操作直接成功。
type NopLock struct{}

func NewNopLock() *NopLock {
	return &NopLock{}
}

func (n *NopLock) Lock(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (n *NopLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}

func (n *NopLock) Extend(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (n *NopLock) Unlock(ctx context.Context, key string) error {
	return nil
}

func (n *NopLock) Close() error {
	return nil
}
