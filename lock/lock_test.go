package lock

import (
	"context"
	"testing"
	"time"
)

func TestNopLockAlwaysSucceeds(t *testing.T) {
	l := NewNopLock()
	ctx := context.Background()

	if err := l.Lock(ctx, "sweep", time.Second); err != nil {
		t.Errorf("NopLock.Lock 不应失败: %v", err)
	}
	ok, err := l.TryLock(ctx, "sweep", time.Second)
	if err != nil || !ok {
		t.Errorf("NopLock.TryLock 应总是成功: ok=%v err=%v", ok, err)
	}
	if err := l.Extend(ctx, "sweep", time.Second); err != nil {
		t.Errorf("NopLock.Extend 不应失败: %v", err)
	}
	if err := l.Unlock(ctx, "sweep"); err != nil {
		t.Errorf("NopLock.Unlock 不应失败: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("NopLock.Close 不应失败: %v", err)
	}
}

func TestFactoryDisabledReturnsNop(t *testing.T) {
	l := NewDistributedLock(&Config{Enabled: false})
	if _, ok := l.(*NopLock); !ok {
		t.Errorf("未启用时应返回 NopLock, 实际 %T", l)
	}

	l = NewDistributedLock(nil)
	if _, ok := l.(*NopLock); !ok {
		t.Errorf("nil 配置应返回 NopLock, 实际 %T", l)
	}
}

func TestConfigDefaultTTL(t *testing.T) {
	var nilCfg *Config
	if got := nilCfg.DefaultTTL(); got != 60*time.Second {
		t.Errorf("nil 配置默认TTL应为60秒, 实际 %v", got)
	}

	cfg := &Config{TTLSeconds: 120}
	if got := cfg.DefaultTTL(); got != 120*time.Second {
		t.Errorf("配置TTL=120秒, 实际 %v", got)
	}

	cfg = &Config{TTLSeconds: -5}
	if got := cfg.DefaultTTL(); got != 60*time.Second {
		t.Errorf("非法TTL应回退默认60秒, 实际 %v", got)
	}
}

func TestUnlockWithoutHold(t *testing.T) {
	// RedisLock 对未持有的锁应报错，不能删除别人的锁
	r := &RedisLock{lockKeys: make(map[string]string)}
	if err := r.Unlock(context.Background(), "sweep"); err == nil {
		t.Errorf("未持有锁时 Unlock 应报错")
	}
	if err := r.Extend(context.Background(), "sweep", time.Second); err == nil {
		t.Errorf("未持有锁时 Extend 应报错")
	}
}
