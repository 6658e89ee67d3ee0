package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBackupDir 默认备份目录
	DefaultBackupDir = "config_backups"
	// DefaultMaxBackups 最多保留的备份数
	DefaultMaxBackups = 50

	backupPrefix = "config.yaml.backup."
	backupSuffix = ".yaml"
)

// BackupInfo 一份配置备份
type BackupInfo struct {
	ID        string    `json:"id"` // 备份文件名
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"file_path"`
	Size      int64     `json:"size"`
}

// BackupManager 配置备份管理器。每次热更新成功后把新配置
// 存档一份，改坏了可以回滚到任意历史版本。
type BackupManager struct {
	backupDir  string
	maxBackups int
}

// NewBackupManager 创建备份管理器，参数为零值时用默认值
func NewBackupManager(dir string, maxBackups int) *BackupManager {
	if dir == "" {
		dir = DefaultBackupDir
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &BackupManager{backupDir: dir, maxBackups: maxBackups}
}

// CreateBackup 备份当前配置文件，并清理超量的旧备份
func (bm *BackupManager) CreateBackup(configPath string) (*BackupInfo, error) {
	if err := os.MkdirAll(bm.backupDir, 0755); err != nil {
		return nil, fmt.Errorf("创建备份目录失败: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	now := time.Now()
	name := backupPrefix + now.Format("20060102150405") + backupSuffix
	backupPath := filepath.Join(bm.backupDir, name)

	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return nil, fmt.Errorf("写入备份文件失败: %w", err)
	}

	if err := bm.CleanOldBackups(); err != nil {
		// 清理失败不影响这次备份
		fmt.Fprintf(os.Stderr, "清理旧备份失败: %v\n", err)
	}

	return &BackupInfo{
		ID:        name,
		Timestamp: now,
		FilePath:  backupPath,
		Size:      int64(len(data)),
	}, nil
}

// ListBackups 列出全部备份，最新的在前
func (bm *BackupManager) ListBackups() ([]*BackupInfo, error) {
	entries, err := os.ReadDir(bm.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*BackupInfo{}, nil
		}
		return nil, fmt.Errorf("读取备份目录失败: %w", err)
	}

	var backups []*BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		ts, err := parseBackupTimestamp(name)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, &BackupInfo{
			ID:        name,
			Timestamp: ts,
			FilePath:  filepath.Join(bm.backupDir, name),
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, nil
}

// RestoreBackup 把指定备份恢复到目标路径，恢复前验证内容合法
func (bm *BackupManager) RestoreBackup(backupID, targetPath string) error {
	data, err := os.ReadFile(filepath.Join(bm.backupDir, backupID))
	if err != nil {
		return fmt.Errorf("读取备份文件失败: %w", err)
	}

	var probe Config
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("备份文件格式无效: %w", err)
	}
	if err := probe.Validate(); err != nil {
		return fmt.Errorf("备份配置验证失败: %w", err)
	}

	if err := os.WriteFile(targetPath, data, 0644); err != nil {
		return fmt.Errorf("恢复配置文件失败: %w", err)
	}
	return nil
}

// DeleteBackup 删除指定备份
func (bm *BackupManager) DeleteBackup(backupID string) error {
	if err := os.Remove(filepath.Join(bm.backupDir, backupID)); err != nil {
		return fmt.Errorf("删除备份文件失败: %w", err)
	}
	return nil
}

// CleanOldBackups 删除超出保留数量的最旧备份
func (bm *BackupManager) CleanOldBackups() error {
	backups, err := bm.ListBackups()
	if err != nil {
		return err
	}
	if len(backups) <= bm.maxBackups {
		return nil
	}

	for _, b := range backups[bm.maxBackups:] {
		if err := bm.DeleteBackup(b.ID); err != nil {
			fmt.Fprintf(os.Stderr, "删除旧备份失败 %s: %v\n", b.ID, err)
		}
	}
	return nil
}

// parseBackupTimestamp 从备份文件名解析时间戳
func parseBackupTimestamp(name string) (time.Time, error) {
	if !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
		return time.Time{}, fmt.Errorf("不是备份文件: %s", name)
	}
	ts := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupSuffix)
	return time.Parse("20060102150405", ts)
}
