package web

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"quantforge/cache"
	"quantforge/config"
	"quantforge/database"
	"quantforge/datasource"
	"quantforge/event"
	"quantforge/lock"
	"quantforge/metrics"
	"quantforge/storage"
)

// 全局依赖（由 main.go 注入）
var (
	db             database.Database
	storageService *storage.Service
	dataManager    *datasource.Manager
	scoreCache     cache.ScoreCache
	scoreCacheTTL  time.Duration
	eventBus       *event.EventBus
	statsCollector *metrics.StatsCollector
	configReloader *config.HotReloader
	sweepLock      lock.DistributedLock = lock.NewNopLock()
	sweepLockTTL                        = 60 * time.Second

	startedAt = time.Now()
)

// SetDatabase 设置数据库
func SetDatabase(d database.Database) {
	db = d
}

// SetStorageService 设置存储服务
func SetStorageService(s *storage.Service) {
	storageService = s
}

// SetDataManager 设置K线数据管理器
func SetDataManager(m *datasource.Manager) {
	dataManager = m
}

// SetScoreCache 设置回测指标缓存
func SetScoreCache(c cache.ScoreCache, ttl time.Duration) {
	scoreCache = c
	scoreCacheTTL = ttl
}

// SetEventBus 设置事件总线
func SetEventBus(b *event.EventBus) {
	eventBus = b
}

// SetStatsCollector 设置运行统计收集器
func SetStatsCollector(sc *metrics.StatsCollector) {
	statsCollector = sc
}

// SetConfigReloader 设置配置热更新器，认证中间件和配置查询从这里读当前配置
func SetConfigReloader(r *config.HotReloader) {
	configReloader = r
}

// SetSweepLock 设置寻优锁。多实例部署时传 Redis 锁，
// 把吃满 CPU 的寻优任务跨实例串行化；默认 NopLock 不限制。
func SetSweepLock(l lock.DistributedLock, ttl time.Duration) {
	if l != nil {
		sweepLock = l
	}
	if ttl > 0 {
		sweepLockTTL = ttl
	}
}

// getStatus 获取服务状态
// GET /api/status
func getStatus(c *gin.Context) {
	dbOK := false
	if db != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		dbOK = db.Ping(ctx) == nil
		cancel()
	}

	cacheOK := false
	if scoreCache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		cacheOK = scoreCache.Ping(ctx) == nil
		cancel()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"database":       dbOK,
		"score_cache":    cacheOK,
		"data_manager":   dataManager != nil,
	})
}

// getResearchStats 获取运行统计快照
// GET /api/stats
func getResearchStats(c *gin.Context) {
	if statsCollector == nil {
		c.JSON(http.StatusOK, gin.H{"stats": metrics.ResearchStats{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": statsCollector.Snapshot()})
}

// getConfig 获取当前生效配置（脱敏后）
// GET /api/config
func getConfig(c *gin.Context) {
	if configReloader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "配置热更新器未注入"})
		return
	}

	cfg := configReloader.GetCurrentConfig()
	masked := *cfg
	if masked.Data.Binance.APIKey != "" {
		masked.Data.Binance.APIKey = "***"
	}
	if masked.Data.Binance.SecretKey != "" {
		masked.Data.Binance.SecretKey = "***"
	}
	if masked.Web.APIKey != "" {
		masked.Web.APIKey = "***"
	}
	if masked.Database.DSN != "" && masked.Database.Type != "sqlite" {
		masked.Database.DSN = "***"
	}
	if masked.Cache.Password != "" {
		masked.Cache.Password = "***"
	}
	if masked.SweepLock.Password != "" {
		masked.SweepLock.Password = "***"
	}

	c.JSON(http.StatusOK, masked)
}

// parseRFC3339Range 解析 start_time/end_time 查询参数，返回毫秒时间戳
func parseRFC3339Range(c *gin.Context) (int64, int64, bool) {
	startStr := c.Query("start_time")
	endStr := c.Query("end_time")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 start_time 或 end_time 参数"})
		return 0, 0, false
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的开始时间格式"})
		return 0, 0, false
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的结束时间格式"})
		return 0, 0, false
	}
	if !end.After(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "结束时间必须晚于开始时间"})
		return 0, 0, false
	}

	return start.UnixMilli(), end.UnixMilli(), true
}
