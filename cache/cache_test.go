package cache

import (
	"context"
	"testing"
	"time"

	"quantforge/backtest"
)

func TestBuildKeyDeterministic(t *testing.T) {
	cost := backtest.DefaultCostConfig()

	k1 := BuildKey("BTCUSDT:1h:1600000000000-1610000000000", "ma_cross",
		map[string]float64{"fast_period": 5, "slow_period": 20}, cost)
	k2 := BuildKey("BTCUSDT:1h:1600000000000-1610000000000", "ma_cross",
		map[string]float64{"slow_period": 20, "fast_period": 5}, cost)

	if k1 != k2 {
		t.Errorf("参数顺序不应影响缓存键: %s != %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("缓存键应为 sha256 十六进制: 长度 %d", len(k1))
	}

	// 任何一个输入变化都要换键
	variants := []string{
		BuildKey("BTCUSDT:1h:1600000000000-1610000000001", "ma_cross",
			map[string]float64{"fast_period": 5, "slow_period": 20}, cost),
		BuildKey("BTCUSDT:1h:1600000000000-1610000000000", "rsi",
			map[string]float64{"fast_period": 5, "slow_period": 20}, cost),
		BuildKey("BTCUSDT:1h:1600000000000-1610000000000", "ma_cross",
			map[string]float64{"fast_period": 6, "slow_period": 20}, cost),
	}
	for i, v := range variants {
		if v == k1 {
			t.Errorf("输入变化后缓存键不应相同 (变体 %d)", i)
		}
	}

	changed := cost
	changed.Commission = 0.002
	k3 := BuildKey("BTCUSDT:1h:1600000000000-1610000000000", "ma_cross",
		map[string]float64{"fast_period": 5, "slow_period": 20}, changed)
	if k3 == k1 {
		t.Errorf("成本配置变化后缓存键不应相同")
	}

	t.Logf("✅ 缓存键构造验证通过: %s", k1[:16])
}

func TestNopCache(t *testing.T) {
	c := NewNopCache()
	ctx := context.Background()

	m, hit, err := c.GetMetrics(ctx, "any")
	if err != nil || hit || m != nil {
		t.Errorf("NopCache 查询应永远未命中: m=%v hit=%v err=%v", m, hit, err)
	}

	if err := c.SetMetrics(ctx, "any", &backtest.Metrics{TotalReturn: 0.5}, time.Minute); err != nil {
		t.Errorf("NopCache 写入不应报错: %v", err)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("NopCache Ping 不应报错: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("NopCache Close 不应报错: %v", err)
	}
}

func TestFactoryDisabled(t *testing.T) {
	if _, ok := NewScoreCache(nil).(*NopCache); !ok {
		t.Errorf("空配置应返回 NopCache")
	}
	if _, ok := NewScoreCache(&Config{Enabled: false}).(*NopCache); !ok {
		t.Errorf("未启用时应返回 NopCache")
	}

	cfg := &Config{}
	if cfg.DefaultTTL() != 24*time.Hour {
		t.Errorf("默认 TTL 应为24小时: %v", cfg.DefaultTTL())
	}
	cfg.TTLHours = 1
	if cfg.DefaultTTL() != time.Hour {
		t.Errorf("配置的 TTL 未生效: %v", cfg.DefaultTTL())
	}
}
