package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"quantforge/logger"
)

// SQLiteStorage 研究数据存储，保存K线缓存和系统监控采样。
// 回测运行记录走 database 包（GORM），这里只放高频写入的原始数据。
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage 创建 SQLite 存储
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建存储目录失败: %w", err)
		}
	}

	// 使用 WAL 模式提高并发性能
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite 并发限制
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{
		db:   db,
		path: path,
	}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建数据表失败: %w", err)
	}

	logger.Info("✅ SQLite 存储已初始化: %s", path)
	return s, nil
}

// createTables 创建数据表
func (s *SQLiteStorage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		interval TEXT NOT NULL,
		ts INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, interval, ts)
	);
	CREATE INDEX IF NOT EXISTS idx_candles_symbol_interval ON candles(symbol, interval);

	CREATE TABLE IF NOT EXISTS system_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		cpu_percent REAL NOT NULL,
		memory_mb REAL NOT NULL,
		memory_percent REAL,
		goroutines INTEGER NOT NULL DEFAULT 0,
		process_id INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_system_metrics_timestamp ON system_metrics(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Stats 返回存储统计信息
func (s *SQLiteStorage) Stats() (*StorageStats, error) {
	stats := &StorageStats{}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM candles").Scan(&stats.CandleCount); err != nil {
		return nil, fmt.Errorf("统计K线数量失败: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM system_metrics").Scan(&stats.MetricsCount); err != nil {
		return nil, fmt.Errorf("统计监控采样数量失败: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT symbol, interval, MIN(ts), MAX(ts), COUNT(*)
		FROM candles
		GROUP BY symbol, interval
		ORDER BY symbol, interval
	`)
	if err != nil {
		return nil, fmt.Errorf("查询K线覆盖范围失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c CandleCoverage
		if err := rows.Scan(&c.Symbol, &c.Interval, &c.FirstTime, &c.LastTime, &c.Count); err != nil {
			continue
		}
		stats.Coverage = append(stats.Coverage, c)
	}

	return stats, nil
}

// Vacuum 优化 SQLite 数据库（回收空间）
func (s *SQLiteStorage) Vacuum() error {
	_, err := s.db.Exec("VACUUM")
	return err
}

// Close 关闭存储
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
