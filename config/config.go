package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quantforge/backtest"
	"quantforge/cache"
	"quantforge/database"
	"quantforge/datasource"
	"quantforge/event"
	"quantforge/lock"
	"quantforge/notify"
	"quantforge/optimizer"
	"quantforge/storage"
)

// Config 研究引擎配置
type Config struct {
	// 系统配置
	System struct {
		LogLevel         string `yaml:"log_level"`          // DEBUG/INFO/WARN/ERROR
		Timezone         string `yaml:"timezone"`           // 如 "UTC"、"Asia/Shanghai"
		LogRetentionDays int    `yaml:"log_retention_days"` // 日志保留天数（默认30天，0表示不清理）
	} `yaml:"system"`

	// 回测成本模型默认值（请求未指定时使用）
	Engine struct {
		Cost backtest.CostConfig `yaml:"cost"`
	} `yaml:"engine"`

	// 参数寻优默认值
	Optimizer struct {
		Workers         int                 `yaml:"workers"`          // <=0 取硬件并行度
		MaxCombinations int                 `yaml:"max_combinations"` // <=0 取默认上限
		Objective       optimizer.Objective `yaml:"objective"`        // 默认 sharpe_ratio
	} `yaml:"optimizer"`

	// 行情数据源
	Data struct {
		Source  string                   `yaml:"source"` // binance 或留空（只用本地缓存和文件）
		Binance datasource.BinanceConfig `yaml:"binance"`
	} `yaml:"data"`

	// 行情缓存与日志存储（SQLite）
	Storage storage.Config `yaml:"storage"`

	// 研究结果数据库（回测、寻优、事件）
	Database database.Config `yaml:"database"`

	// 回测指标缓存（Redis，可选）
	Cache cache.Config `yaml:"cache"`

	// 寻优锁（Redis，可选）：多实例共用数据时串行化寻优任务
	SweepLock lock.Config `yaml:"sweep_lock"`

	// 事件中心
	EventCenter event.EventCenterConfig `yaml:"event_center"`

	// 通知
	Notifications notify.Config `yaml:"notifications"`

	// Web 服务
	Web struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`    // 监听地址（默认 0.0.0.0）
		Port    int    `yaml:"port"`    // 监听端口（默认 8080）
		APIKey  string `yaml:"api_key"` // API 密钥（可选，用于认证）

		Pprof struct {
			Enabled bool `yaml:"enabled"` // 是否挂载 pprof，默认 false
		} `yaml:"pprof"`
	} `yaml:"web"`

	// 运行时指标采集
	Metrics struct {
		Enabled         bool `yaml:"enabled"`
		CollectInterval int  `yaml:"collect_interval"` // 秒，默认15
	} `yaml:"metrics"`
}

// DefaultConfig 带默认值的配置
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.System.LogLevel = "INFO"
	cfg.System.Timezone = "UTC"
	cfg.System.LogRetentionDays = 30

	cfg.Engine.Cost = backtest.DefaultCostConfig()

	cfg.Optimizer.Objective = optimizer.ObjectiveSharpe

	cfg.Storage = *storage.DefaultConfig()

	cfg.Database.Type = "sqlite"
	cfg.Database.DSN = "data/quantforge.db"

	cfg.EventCenter = *event.DefaultEventCenterConfig()

	cfg.Web.Enabled = true
	cfg.Web.Host = "0.0.0.0"
	cfg.Web.Port = 8080

	cfg.Metrics.Enabled = true
	cfg.Metrics.CollectInterval = 15

	return cfg
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节数组加载配置（用于测试）
func LoadConfigFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Validate 验证配置并补齐默认值
func (c *Config) Validate() error {
	// 系统
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.System.Timezone == "" {
		c.System.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.System.Timezone); err != nil {
		return fmt.Errorf("无效的时区 %s: %w", c.System.Timezone, err)
	}
	if c.System.LogRetentionDays < 0 {
		return fmt.Errorf("日志保留天数不能为负数")
	}

	// 成本模型
	if c.Engine.Cost.InitialCapital <= 0 {
		c.Engine.Cost.InitialCapital = backtest.DefaultCostConfig().InitialCapital
	}
	if err := c.Engine.Cost.Validate(); err != nil {
		return fmt.Errorf("成本模型配置无效: %w", err)
	}

	// 寻优默认
	if c.Optimizer.Workers < 0 {
		c.Optimizer.Workers = 0
	}
	if c.Optimizer.MaxCombinations < 0 {
		c.Optimizer.MaxCombinations = 0
	}
	if c.Optimizer.Objective == "" {
		c.Optimizer.Objective = optimizer.ObjectiveSharpe
	}
	validObjective := false
	for _, o := range optimizer.Objectives() {
		if c.Optimizer.Objective == o {
			validObjective = true
			break
		}
	}
	if !validObjective {
		return fmt.Errorf("不支持的寻优目标: %s", c.Optimizer.Objective)
	}

	// 数据源
	switch c.Data.Source {
	case "", "binance":
	default:
		return fmt.Errorf("不支持的数据源: %s", c.Data.Source)
	}

	// Web 服务
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port <= 0 {
		c.Web.Port = 8080
	}
	if c.Web.Port > 65535 {
		return fmt.Errorf("无效的 Web 端口: %d", c.Web.Port)
	}

	// 指标采集
	if c.Metrics.CollectInterval <= 0 {
		c.Metrics.CollectInterval = 15
	}

	// 寻优锁
	if c.SweepLock.Enabled && c.SweepLock.Addr == "" {
		c.SweepLock.Addr = "localhost:6379"
	}

	// 事件中心阈值
	if c.EventCenter.CPUThreshold <= 0 {
		c.EventCenter.CPUThreshold = event.DefaultEventCenterConfig().CPUThreshold
	}
	if c.EventCenter.MemoryThreshold <= 0 {
		c.EventCenter.MemoryThreshold = event.DefaultEventCenterConfig().MemoryThreshold
	}
	if c.EventCenter.CleanupInterval <= 0 {
		c.EventCenter.CleanupInterval = event.DefaultEventCenterConfig().CleanupInterval
	}

	return nil
}
