package config

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// HotReloader 配置热更新器。
// 可热更新的变更直接生效并触发回调，需要重启的变更只记录不应用。
type HotReloader struct {
	mu              sync.RWMutex
	currentConfig   *Config
	updateCallbacks []ConfigUpdateCallback
}

// ConfigUpdateCallback 配置更新回调函数类型
type ConfigUpdateCallback func(oldConfig, newConfig *Config, changes []ConfigChange) error

// NewHotReloader 创建热更新器
func NewHotReloader(initialConfig *Config) *HotReloader {
	return &HotReloader{
		currentConfig: initialConfig,
	}
}

// RegisterCallback 注册配置更新回调
func (hr *HotReloader) RegisterCallback(callback ConfigUpdateCallback) {
	hr.mu.Lock()
	defer hr.mu.Unlock()
	hr.updateCallbacks = append(hr.updateCallbacks, callback)
}

// UpdateConfig 更新配置。
// 返回完整差异，其中 RequiresRestart 标记了未被应用的部分。
func (hr *HotReloader) UpdateConfig(newConfig *Config) (*ConfigDiff, error) {
	hr.mu.Lock()
	defer hr.mu.Unlock()

	diff := DiffConfig(hr.currentConfig, newConfig)
	if len(diff.Changes) == 0 {
		return diff, nil
	}

	hotChanges := make([]ConfigChange, 0, len(diff.Changes))
	for _, change := range diff.Changes {
		if !change.RequiresRestart {
			hotChanges = append(hotChanges, change)
		}
	}

	// 全部可热更新时直接替换整份配置
	if !diff.RequiresRestart {
		if err := hr.fireCallbacks(hr.currentConfig, newConfig, hotChanges); err != nil {
			return nil, err
		}
		hr.currentConfig = newConfig
		return diff, nil
	}

	if len(hotChanges) == 0 {
		return diff, nil
	}

	// 混合变更：克隆当前配置，只把可热更新的部分搬过去
	partial, err := cloneConfig(hr.currentConfig)
	if err != nil {
		return nil, fmt.Errorf("复制配置失败: %w", err)
	}
	for _, change := range hotChanges {
		copyConfigSection(partial, newConfig, change.Path)
	}

	if err := hr.fireCallbacks(hr.currentConfig, partial, hotChanges); err != nil {
		return nil, err
	}
	hr.currentConfig = partial

	return diff, nil
}

// GetCurrentConfig 获取当前生效的配置
func (hr *HotReloader) GetCurrentConfig() *Config {
	hr.mu.RLock()
	defer hr.mu.RUnlock()
	return hr.currentConfig
}

func (hr *HotReloader) fireCallbacks(oldConfig, newConfig *Config, changes []ConfigChange) error {
	for _, callback := range hr.updateCallbacks {
		if err := callback(oldConfig, newConfig, changes); err != nil {
			return fmt.Errorf("配置更新回调执行失败: %w", err)
		}
	}
	return nil
}

// copyConfigSection 按配置路径把一段配置从 src 搬到 dest。
// 只覆盖可热更新的段，需要重启的段不会走到这里。
func copyConfigSection(dest, src *Config, path string) {
	switch {
	case strings.HasPrefix(path, "system.log_level"):
		dest.System.LogLevel = src.System.LogLevel
	case strings.HasPrefix(path, "system.log_retention_days"):
		dest.System.LogRetentionDays = src.System.LogRetentionDays
	case strings.HasPrefix(path, "engine."):
		dest.Engine = src.Engine
	case strings.HasPrefix(path, "optimizer."):
		dest.Optimizer = src.Optimizer
	case strings.HasPrefix(path, "web.api_key"):
		dest.Web.APIKey = src.Web.APIKey
	case strings.HasPrefix(path, "metrics."):
		dest.Metrics = src.Metrics
	}
}

// cloneConfig 通过序列化往返做深拷贝，配置结构是纯数据所以无损
func cloneConfig(cfg *Config) (*Config, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	clone := &Config{}
	if err := yaml.Unmarshal(data, clone); err != nil {
		return nil, err
	}
	return clone, nil
}
