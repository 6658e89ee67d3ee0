package datasource

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quantforge/event"
	"quantforge/indicators"
	"quantforge/logger"
	"quantforge/metrics"
	"quantforge/storage"
)

// Source 历史K线来源
type Source interface {
	Name() string
	FetchCandles(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]indicators.Candle, error)
}

var _ Source = (*BinanceSource)(nil)

// Manager 统一的K线获取入口：优先读 SQLite 缓存，缺数据时从远端拉取并回填。
// store、source、bus 都可以为 nil，缺哪个就少哪个能力。
type Manager struct {
	store  *storage.SQLiteStorage
	source Source
	bus    *event.EventBus
	pm     *metrics.PrometheusMetrics
}

// NewManager 创建数据管理器
func NewManager(store *storage.SQLiteStorage, source Source, bus *event.EventBus) *Manager {
	return &Manager{
		store:  store,
		source: source,
		bus:    bus,
		pm:     metrics.GetPrometheusMetrics(),
	}
}

// GetCandles 获取 [startTime, endTime] 的K线（毫秒时间戳，闭区间）。
// 缓存完整覆盖请求范围时直接返回缓存，否则整段重拉并回填。
func (m *Manager) GetCandles(ctx context.Context, symbol, interval string, startTime, endTime int64) ([]indicators.Candle, error) {
	if _, err := IntervalDuration(interval); err != nil {
		return nil, err
	}
	if startTime > endTime {
		return nil, fmt.Errorf("时间范围不合法: start=%d > end=%d", startTime, endTime)
	}

	begin := time.Now()

	if m.store != nil {
		cov, err := m.store.GetCandleCoverage(symbol, interval)
		if err == nil && cov != nil && cov.FirstTime <= startTime && cov.LastTime >= endTime {
			candles, err := m.store.QueryCandles(symbol, interval, startTime, endTime, 0)
			if err == nil && len(candles) > 0 {
				m.pm.RecordCacheHit("candles")
				m.pm.RecordDataFetch("cache", "success", time.Since(begin))
				logger.Info("✅ 从缓存加载: %s %s (%d 根K线)", symbol, interval, len(candles))
				m.publishFetched(symbol, interval, "cache", len(candles), begin)
				return candles, nil
			}
		}
		m.pm.RecordCacheMiss("candles")
	}

	if m.source == nil {
		err := fmt.Errorf("缓存未覆盖请求范围且未配置数据源: %s %s", symbol, interval)
		m.publishFetchFailed(symbol, interval, err)
		return nil, err
	}

	candles, err := m.source.FetchCandles(ctx, symbol, interval, startTime, endTime)
	if err != nil {
		m.pm.RecordDataFetch(m.source.Name(), "failed", time.Since(begin))
		m.publishFetchFailed(symbol, interval, err)
		return nil, fmt.Errorf("拉取K线失败: %w", err)
	}
	m.pm.RecordDataFetch(m.source.Name(), "success", time.Since(begin))

	if m.store != nil && len(candles) > 0 {
		if err := m.store.SaveCandles(symbol, interval, candles); err != nil {
			logger.Warn("⚠️ K线缓存回填失败: %v", err)
		}
	}

	m.publishFetched(symbol, interval, m.source.Name(), len(candles), begin)
	return candles, nil
}

// ImportFile 把本地文件（CSV 或 Parquet）导入K线缓存，返回导入条数
func (m *Manager) ImportFile(symbol, interval, path string) (int, error) {
	if m.store == nil {
		return 0, fmt.Errorf("未配置存储，无法导入")
	}
	if _, err := IntervalDuration(interval); err != nil {
		return 0, err
	}

	candles, err := LoadFile(path)
	if err != nil {
		m.publishFetchFailed(symbol, interval, err)
		return 0, err
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("文件没有K线数据: %s", path)
	}

	begin := time.Now()
	if err := m.store.SaveCandles(symbol, interval, candles); err != nil {
		return 0, fmt.Errorf("写入K线缓存失败: %w", err)
	}

	logger.Info("💾 已导入: %s %s %d 根K线 (%s)", symbol, interval, len(candles), filepath.Base(path))
	m.publishFetched(symbol, interval, "file", len(candles), begin)
	return len(candles), nil
}

// publishFetched 发布数据获取成功事件
func (m *Manager) publishFetched(symbol, interval, source string, count int, begin time.Time) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(&event.Event{
		Type:      event.EventTypeDataFetched,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"symbol":     symbol,
			"interval":   interval,
			"source":     source,
			"count":      count,
			"elapsed_ms": time.Since(begin).Seconds() * 1000,
		},
	})
}

// publishFetchFailed 发布数据获取失败事件
func (m *Manager) publishFetchFailed(symbol, interval string, err error) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(&event.Event{
		Type:      event.EventTypeDataFetchFailed,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"symbol":   symbol,
			"interval": interval,
			"error":    err.Error(),
		},
	})
}

// LoadFile 按扩展名加载K线文件
func LoadFile(path string) ([]indicators.Candle, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".parquet", ".pq":
		return LoadParquet(path)
	default:
		return nil, fmt.Errorf("不支持的文件格式: %s", filepath.Ext(path))
	}
}

// WriteFile 按扩展名写出K线文件
func WriteFile(path string, candles []indicators.Candle) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(path, candles)
	case ".parquet", ".pq":
		return WriteParquet(path, candles)
	default:
		return fmt.Errorf("不支持的文件格式: %s", filepath.Ext(path))
	}
}

// normalizeCandles 按时间升序排序并按时间戳去重（后写入的覆盖先写入的）
func normalizeCandles(candles []indicators.Candle) []indicators.Candle {
	if len(candles) == 0 {
		return candles
	}

	sort.SliceStable(candles, func(i, j int) bool {
		return candles[i].Time < candles[j].Time
	})

	out := candles[:1]
	for i := 1; i < len(candles); i++ {
		if candles[i].Time == out[len(out)-1].Time {
			out[len(out)-1] = candles[i]
			continue
		}
		out = append(out, candles[i])
	}
	return out
}
