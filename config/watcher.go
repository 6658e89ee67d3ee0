package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"quantforge/logger"
)

// ConfigWatcher 配置文件监控器。
// fsnotify 监听为主，修改时间轮询兜底（编辑器原子替换文件时 inotify 事件可能丢失）。
type ConfigWatcher struct {
	configPath  string
	watcher     *fsnotify.Watcher
	hotReloader *HotReloader
	backups     *BackupManager
	mu          sync.RWMutex
	isWatching  bool
	lastModTime time.Time
	updateChan  chan *Config
	errorChan   chan error
}

// NewConfigWatcher 创建配置监控器
func NewConfigWatcher(configPath string, hotReloader *HotReloader) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	configDir := filepath.Dir(configPath)
	if configDir == "" || configDir == "." {
		configDir, err = os.Getwd()
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("获取当前目录失败: %w", err)
		}
		configPath = filepath.Join(configDir, filepath.Base(configPath))
	}

	var lastModTime time.Time
	if info, err := os.Stat(configPath); err == nil {
		lastModTime = info.ModTime()
	}

	return &ConfigWatcher{
		configPath:  configPath,
		watcher:     watcher,
		hotReloader: hotReloader,
		backups:     NewBackupManager("", 0),
		lastModTime: lastModTime,
		updateChan:  make(chan *Config, 1),
		errorChan:   make(chan error, 10),
	}, nil
}

// Start 开始监控配置文件
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.isWatching {
		return fmt.Errorf("配置监控器已经在运行")
	}

	// 监听目录而不是文件本身，覆盖删除重建的情况
	if err := cw.watcher.Add(filepath.Dir(cw.configPath)); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}

	cw.isWatching = true
	go cw.watchLoop(ctx)

	logger.Info("👀 配置热更新监控已启动: %s", cw.configPath)
	return nil
}

// Stop 停止监控
func (cw *ConfigWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.isWatching {
		return nil
	}

	cw.isWatching = false
	return cw.watcher.Close()
}

// watchLoop 监控循环
func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if ev.Name != cw.configPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// 等写入结束再读，避免读到半个文件
				time.Sleep(100 * time.Millisecond)
				cw.handleConfigChange()
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.reportError(err)

		case <-ticker.C:
			cw.checkFileModTime()
		}
	}
}

// handleConfigChange 处理配置文件变化
func (cw *ConfigWatcher) handleConfigChange() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	info, err := os.Stat(cw.configPath)
	if err != nil {
		cw.reportError(fmt.Errorf("获取文件信息失败: %w", err))
		return
	}

	// 修改时间没有前进说明是重复事件
	modTime := info.ModTime()
	if !modTime.After(cw.lastModTime) {
		return
	}
	cw.lastModTime = modTime

	newConfig, err := LoadConfig(cw.configPath)
	if err != nil {
		cw.reportError(fmt.Errorf("重新加载配置失败: %w", err))
		return
	}

	diff, err := cw.hotReloader.UpdateConfig(newConfig)
	if err != nil {
		cw.reportError(fmt.Errorf("配置热更新失败: %w", err))
		return
	}

	if len(diff.Changes) == 0 {
		return
	}

	logger.Info("✅ 配置已热更新: %d 项变更", len(diff.Changes))

	// 存档生效的新版本，便于回滚
	if _, err := cw.backups.CreateBackup(cw.configPath); err != nil {
		logger.Warn("⚠️ 备份配置失败: %v", err)
	}

	// 有需要重启的变更时通知调用方
	if diff.RequiresRestart {
		logger.Warn("⚠️ 部分配置变更需要重启后生效")
		select {
		case cw.updateChan <- newConfig:
		default:
		}
	}
}

// checkFileModTime 轮询检查文件修改时间
func (cw *ConfigWatcher) checkFileModTime() {
	cw.mu.RLock()
	lastModTime := cw.lastModTime
	cw.mu.RUnlock()

	info, err := os.Stat(cw.configPath)
	if err != nil {
		return
	}

	if info.ModTime().After(lastModTime) {
		cw.handleConfigChange()
	}
}

func (cw *ConfigWatcher) reportError(err error) {
	select {
	case cw.errorChan <- err:
	default:
	}
}

// GetUpdateChan 获取需要重启的配置更新通道
func (cw *ConfigWatcher) GetUpdateChan() <-chan *Config {
	return cw.updateChan
}

// GetErrorChan 获取错误通道
func (cw *ConfigWatcher) GetErrorChan() <-chan error {
	return cw.errorChan
}
