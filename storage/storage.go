package storage

import (
	"context"
	"sync"
	"time"

	"quantforge/logger"
	"quantforge/monitor"
)

// Config 存储配置
type Config struct {
	Enabled         bool   `yaml:"enabled" json:"enabled"`
	Path            string `yaml:"path" json:"path"`                         // K线缓存和监控采样数据库
	LogPath         string `yaml:"log_path" json:"log_path"`                 // 日志数据库
	EnableLogSink   bool   `yaml:"enable_log_sink" json:"enable_log_sink"`   // 是否把日志写入 SQLite
	MetricsInterval int    `yaml:"metrics_interval" json:"metrics_interval"` // 系统监控采样周期（秒，默认30）
	RetentionDays   int    `yaml:"retention_days" json:"retention_days"`     // 监控采样保留天数
	LogDays         int    `yaml:"log_days" json:"log_days"`                 // 日志保留天数
	CleanupInterval int    `yaml:"cleanup_interval" json:"cleanup_interval"` // 清理周期（小时，默认24）
}

// DefaultConfig 返回默认存储配置
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Path:            "data/market.db",
		LogPath:         "data/logs.db",
		EnableLogSink:   true,
		MetricsInterval: 30,
		RetentionDays:   7,
		LogDays:         30,
		CleanupInterval: 24,
	}
}

// Service 存储服务，聚合K线缓存、日志落盘和监控采样持久化。
// 后台跑两个任务：周期性系统监控采样入库，以及按保留期清理旧数据。
type Service struct {
	cfg     *Config
	store   *SQLiteStorage
	logs    *LogStorage
	sampler *monitor.SweepSampler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService 创建存储服务并打开底层数据库
func NewService(cfg *Config) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = "data/market.db"
	}
	if cfg.LogPath == "" {
		cfg.LogPath = "data/logs.db"
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = 30
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.LogDays <= 0 {
		cfg.LogDays = 30
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24
	}

	store, err := NewSQLiteStorage(cfg.Path)
	if err != nil {
		return nil, err
	}

	logs, err := NewLogStorage(cfg.LogPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:    cfg,
		store:  store,
		logs:   logs,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableLogSink {
		logs.Attach()
	}

	return s, nil
}

// Store 返回K线和监控数据存储
func (s *Service) Store() *SQLiteStorage {
	return s.store
}

// Logs 返回日志存储
func (s *Service) Logs() *LogStorage {
	return s.logs
}

// Start 启动后台采样和清理任务
func (s *Service) Start() {
	interval := time.Duration(s.cfg.MetricsInterval) * time.Second
	s.sampler = monitor.NewSweepSampler(interval, func(m *monitor.SystemMetrics) {
		if err := s.store.SaveSystemMetrics(m); err != nil {
			logger.Debug("监控采样入库失败: %v", err)
		}
	})
	s.sampler.Start()

	s.wg.Add(1)
	go s.cleanupTask()

	logger.Info("🚀 存储服务已启动: 采样周期 %v, 采样保留 %d 天, 日志保留 %d 天",
		interval, s.cfg.RetentionDays, s.cfg.LogDays)
}

// cleanupTask 周期性清理过期数据
func (s *Service) cleanupTask() {
	defer s.wg.Done()

	// 启动后1分钟先清理一次
	timer := time.NewTimer(time.Minute)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			s.performCleanup()
			timer.Reset(time.Duration(s.cfg.CleanupInterval) * time.Hour)
		}
	}
}

// performCleanup 执行一轮过期数据清理
func (s *Service) performCleanup() {
	metricsCutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	if err := s.store.CleanupSystemMetrics(metricsCutoff); err != nil {
		logger.Warn("⚠️ 清理监控采样失败: %v", err)
	}

	if err := s.logs.CleanOldLogs(s.cfg.LogDays); err != nil {
		logger.Warn("⚠️ 清理历史日志失败: %v", err)
	}

	logger.Info("🧹 存储清理完成: 监控采样保留至 %s", metricsCutoff.Format("2006-01-02"))
}

// Stop 停止后台任务并关闭存储
func (s *Service) Stop() {
	if s.sampler != nil {
		s.sampler.Stop()
	}
	s.cancel()
	s.wg.Wait()

	if err := s.logs.Close(); err != nil {
		logger.Warn("⚠️ 关闭日志存储失败: %v", err)
	}
	if err := s.store.Close(); err != nil {
		logger.Warn("⚠️ 关闭数据存储失败: %v", err)
	}
	logger.Info("🛑 存储服务已停止")
}
