package storage

import (
	"os"
	"testing"
	"time"

	"quantforge/indicators"
	"quantforge/monitor"
)

func TestSQLiteStorage(t *testing.T) {
	dbPath := "./test_quantforge.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-shm")
	defer os.Remove(dbPath + "-wal")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	defer store.Close()

	// 1. 测试K线批量写入和范围查询
	base := int64(1_600_000_000_000)
	minute := int64(60_000)
	candles := make([]indicators.Candle, 10)
	for i := range candles {
		price := 100.0 + float64(i)
		candles[i] = indicators.Candle{
			Time:   base + int64(i)*minute,
			Open:   price,
			High:   price + 1,
			Low:    price - 1,
			Close:  price + 0.5,
			Volume: 1000,
		}
	}

	if err := store.SaveCandles("BTCUSDT", "1m", candles); err != nil {
		t.Fatalf("保存K线失败: %v", err)
	}

	got, err := store.QueryCandles("BTCUSDT", "1m", base, base+9*minute, 0)
	if err != nil {
		t.Fatalf("查询K线失败: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("K线数量不正确: 期望 10, 得到 %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Time <= got[i-1].Time {
			t.Errorf("K线应按时间升序: got[%d].Time=%d, got[%d].Time=%d", i-1, got[i-1].Time, i, got[i].Time)
		}
	}
	if got[0].Close != 100.5 {
		t.Errorf("第一根K线收盘价不正确: 期望 100.5, 得到 %v", got[0].Close)
	}

	// 2. 重复写入同一根K线应覆盖而不是新增
	updated := candles[0]
	updated.Close = 999
	if err := store.SaveCandles("BTCUSDT", "1m", []indicators.Candle{updated}); err != nil {
		t.Fatalf("覆盖写入K线失败: %v", err)
	}
	got, _ = store.QueryCandles("BTCUSDT", "1m", base, base+9*minute, 0)
	if len(got) != 10 {
		t.Errorf("覆盖写入后K线数量应不变: 期望 10, 得到 %d", len(got))
	}
	if got[0].Close != 999 {
		t.Errorf("覆盖写入未生效: 期望 999, 得到 %v", got[0].Close)
	}

	// 3. 范围查询边界和 limit
	part, err := store.QueryCandles("BTCUSDT", "1m", base+2*minute, base+5*minute, 0)
	if err != nil {
		t.Fatalf("范围查询失败: %v", err)
	}
	if len(part) != 4 {
		t.Errorf("闭区间范围查询数量不正确: 期望 4, 得到 %d", len(part))
	}
	limited, _ := store.QueryCandles("BTCUSDT", "1m", base, 0, 3)
	if len(limited) != 3 {
		t.Errorf("limit 查询数量不正确: 期望 3, 得到 %d", len(limited))
	}

	// 4. 覆盖范围
	cov, err := store.GetCandleCoverage("BTCUSDT", "1m")
	if err != nil {
		t.Fatalf("查询覆盖范围失败: %v", err)
	}
	if cov == nil || cov.FirstTime != base || cov.LastTime != base+9*minute || cov.Count != 10 {
		t.Errorf("覆盖范围不正确: %+v", cov)
	}

	none, err := store.GetCandleCoverage("ETHUSDT", "1m")
	if err != nil {
		t.Fatalf("查询空覆盖范围失败: %v", err)
	}
	if none != nil {
		t.Errorf("无数据时覆盖范围应为 nil, 得到 %+v", none)
	}

	// 5. 清理旧K线
	removed, err := store.CleanupCandles("BTCUSDT", "1m", base+5*minute)
	if err != nil {
		t.Fatalf("清理K线失败: %v", err)
	}
	if removed != 5 {
		t.Errorf("清理数量不正确: 期望 5, 得到 %d", removed)
	}

	t.Logf("✅ K线缓存读写验证通过")
}

func TestSystemMetricsStorage(t *testing.T) {
	dbPath := "./test_quantforge_metrics.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-shm")
	defer os.Remove(dbPath + "-wal")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("创建存储失败: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		m := &monitor.SystemMetrics{
			Timestamp:     now.Add(time.Duration(i) * time.Minute),
			CPUPercent:    10.0 + float64(i),
			MemoryMB:      128,
			MemoryPercent: 25,
			Goroutines:    8 + i,
			ProcessID:     os.Getpid(),
		}
		if err := store.SaveSystemMetrics(m); err != nil {
			t.Fatalf("写入监控采样失败: %v", err)
		}
	}

	records, err := store.QuerySystemMetrics(now.Add(-time.Minute), now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("查询监控采样失败: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("监控采样数量不正确: 期望 3, 得到 %d", len(records))
	}

	latest, err := store.GetLatestSystemMetrics()
	if err != nil {
		t.Fatalf("查询最新监控采样失败: %v", err)
	}
	if latest == nil || latest.CPUPercent != 12.0 {
		t.Errorf("最新监控采样不正确: %+v", latest)
	}

	// 清理两分钟之前的采样，应只剩最后一条
	if err := store.CleanupSystemMetrics(now.Add(2 * time.Minute)); err != nil {
		t.Fatalf("清理监控采样失败: %v", err)
	}
	records, _ = store.QuerySystemMetrics(now.Add(-time.Minute), now.Add(10*time.Minute))
	if len(records) != 1 {
		t.Errorf("清理后采样数量不正确: 期望 1, 得到 %d", len(records))
	}

	t.Logf("✅ 系统监控采样存储验证通过")
}

func TestLogStorage(t *testing.T) {
	dbPath := "./test_quantforge_logs.db"
	defer os.Remove(dbPath)
	defer os.Remove(dbPath + "-shm")
	defer os.Remove(dbPath + "-wal")

	ls, err := NewLogStorage(dbPath)
	if err != nil {
		t.Fatalf("创建日志存储失败: %v", err)
	}
	defer ls.Close()

	sub := ls.Subscribe()
	defer ls.Unsubscribe(sub)

	ls.WriteLog("INFO", "回测任务已提交")
	ls.WriteLog("WARN", "参数网格组合数超过上限")
	ls.WriteLog("ERROR", "数据拉取失败")

	// 写入是异步批量的，等一个刷新周期
	deadline := time.After(3 * time.Second)
	received := 0
	for received < 3 {
		select {
		case _, ok := <-sub:
			if !ok {
				t.Fatalf("订阅通道被提前关闭")
			}
			received++
		case <-deadline:
			t.Fatalf("等待日志推送超时, 已收到 %d 条", received)
		}
	}

	records, total, err := ls.GetLogs(LogQueryParams{Limit: 10})
	if err != nil {
		t.Fatalf("查询日志失败: %v", err)
	}
	if total != 3 || len(records) != 3 {
		t.Fatalf("日志数量不正确: 期望 3, 得到 total=%d len=%d", total, len(records))
	}

	warns, warnTotal, err := ls.GetLogs(LogQueryParams{Level: "WARN", Limit: 10})
	if err != nil {
		t.Fatalf("按级别查询日志失败: %v", err)
	}
	if warnTotal != 1 || len(warns) != 1 || warns[0].Message != "参数网格组合数超过上限" {
		t.Errorf("按级别查询结果不正确: total=%d %+v", warnTotal, warns)
	}

	matched, _, err := ls.GetLogs(LogQueryParams{Keyword: "数据拉取", Limit: 10})
	if err != nil {
		t.Fatalf("按关键词查询日志失败: %v", err)
	}
	if len(matched) != 1 || matched[0].Level != "ERROR" {
		t.Errorf("按关键词查询结果不正确: %+v", matched)
	}

	stats, err := ls.GetLogStats()
	if err != nil {
		t.Fatalf("查询日志统计失败: %v", err)
	}
	if stats["total"].(int64) != 3 {
		t.Errorf("日志统计总数不正确: %v", stats["total"])
	}

	t.Logf("✅ 日志存储验证通过: 共 %d 条", total)
}
