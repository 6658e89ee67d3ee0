package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"quantforge/logger"
	"quantforge/utils"
)

const (
	logBufferSize    = 500
	logBatchSize     = 100
	logFlushInterval = time.Second
	maxLogSubscriber = 100
)

// LogStorage 日志的 SQLite 落盘，配合 logger.InitLogStorage 使用。
// 写入全程异步，数据库故障不影响主流程。
type LogStorage struct {
	db     *sql.DB
	mu     sync.RWMutex
	logCh  chan *logEntry
	closed atomic.Bool

	// 订阅者用于 Web 端实时日志推送
	subscribers []chan *LogRecord
	subMu       sync.RWMutex
}

type logEntry struct {
	level     string
	message   string
	timestamp time.Time
}

// NewLogStorage 创建日志存储
func NewLogStorage(path string) (*LogStorage, error) {
	// 使用 WAL 模式提高并发性能
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("打开日志数据库失败: %w", err)
	}

	// SQLite 并发限制
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ls := &LogStorage{
		db:          db,
		logCh:       make(chan *logEntry, logBufferSize),
		subscribers: make([]chan *LogRecord, 0),
	}

	if err := ls.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建日志表失败: %w", err)
	}

	go ls.flushLoop()

	return ls, nil
}

// createTable 创建日志表
func (ls *LogStorage) createTable() error {
	schema := `
	CREATE TABLE IF NOT EXISTS logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);
	`

	_, err := ls.db.Exec(schema)
	return err
}

// Attach 把日志存储挂到全局 logger 上
func (ls *LogStorage) Attach() {
	logger.InitLogStorage(ls.WriteLog)
}

// WriteLog 写入日志（异步，队列满时丢弃）
func (ls *LogStorage) WriteLog(level, message string) {
	if ls.closed.Load() {
		return
	}

	entry := &logEntry{
		level:     level,
		message:   message,
		timestamp: utils.NowUTC(),
	}

	select {
	case ls.logCh <- entry:
	default:
		// 队列满了，丢弃，不能阻塞日志调用方
	}
}

// flushLoop 批量落盘（在独立 goroutine 中运行）
func (ls *LogStorage) flushLoop() {
	buffer := make([]*logEntry, 0, logBatchSize)
	ticker := time.NewTicker(logFlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(buffer) == 0 {
			return
		}

		ls.mu.Lock()
		err := ls.batchInsert(buffer)
		ls.mu.Unlock()

		if err != nil {
			// 落盘失败静默处理，写错误日志会递归
			_ = err
		}

		buffer = buffer[:0]
	}

	for {
		select {
		case entry, ok := <-ls.logCh:
			if !ok {
				flush()
				return
			}
			buffer = append(buffer, entry)
			if len(buffer) >= logBatchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// batchInsert 批量插入日志并通知订阅者
func (ls *LogStorage) batchInsert(entries []*logEntry) error {
	tx, err := ls.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO logs (timestamp, level, message)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	inserted := make([]*LogRecord, 0, len(entries))
	for _, entry := range entries {
		result, err := stmt.Exec(entry.timestamp, entry.level, entry.message)
		if err != nil {
			return err
		}

		id, _ := result.LastInsertId()
		inserted = append(inserted, &LogRecord{
			ID:        id,
			Timestamp: entry.timestamp,
			Level:     entry.level,
			Message:   entry.message,
		})
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	ls.notifySubscribers(inserted)
	return nil
}

// Subscribe 订阅日志实时推送
func (ls *LogStorage) Subscribe() chan *LogRecord {
	ls.subMu.Lock()
	defer ls.subMu.Unlock()

	ch := make(chan *LogRecord, 100)
	ls.subscribers = append(ls.subscribers, ch)

	// 限制订阅者数量，防止内存泄漏
	if len(ls.subscribers) > maxLogSubscriber {
		oldest := ls.subscribers[0]
		close(oldest)
		ls.subscribers = ls.subscribers[1:]
		logger.Warn("⚠️ 日志订阅者数量超过限制 (%d)，已移除最旧的订阅者", maxLogSubscriber)
	}

	return ch
}

// Unsubscribe 取消订阅
func (ls *LogStorage) Unsubscribe(ch chan *LogRecord) {
	ls.subMu.Lock()
	defer ls.subMu.Unlock()

	for i, sub := range ls.subscribers {
		if sub == ch {
			ls.subscribers = append(ls.subscribers[:i], ls.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// notifySubscribers 非阻塞推送给所有订阅者
func (ls *LogStorage) notifySubscribers(records []*LogRecord) {
	ls.subMu.RLock()
	subscribers := make([]chan *LogRecord, len(ls.subscribers))
	copy(subscribers, ls.subscribers)
	ls.subMu.RUnlock()

	go func() {
		for _, record := range records {
			for _, sub := range subscribers {
				select {
				case sub <- record:
				default:
					// 订阅者消费太慢，跳过
				}
			}
		}
	}()
}

// GetLogs 查询日志，返回记录和满足条件的总条数
func (ls *LogStorage) GetLogs(params LogQueryParams) ([]*LogRecord, int, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	where := []string{"1=1"}
	args := []interface{}{}

	if !params.StartTime.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, params.StartTime)
	}
	if !params.EndTime.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, params.EndTime)
	}
	if params.Level != "" {
		where = append(where, "level = ?")
		args = append(args, params.Level)
	}
	if params.Keyword != "" {
		where = append(where, "message LIKE ?")
		args = append(args, "%"+params.Keyword+"%")
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM logs WHERE %s", whereClause)
	if err := ls.db.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("查询日志总数失败: %w", err)
	}

	if params.Limit <= 0 {
		params.Limit = 100
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}

	querySQL := fmt.Sprintf(`
		SELECT id, timestamp, level, message
		FROM logs
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT ? OFFSET ?
	`, whereClause)

	args = append(args, params.Limit, params.Offset)

	rows, err := ls.db.Query(querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询日志失败: %w", err)
	}
	defer rows.Close()

	var records []*LogRecord
	for rows.Next() {
		var r LogRecord
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Level, &r.Message); err != nil {
			continue
		}
		records = append(records, &r)
	}

	return records, total, nil
}

// CleanOldLogs 清理超过指定天数的日志
func (ls *LogStorage) CleanOldLogs(days int) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -days)
	_, err := ls.db.Exec("DELETE FROM logs WHERE timestamp < ?", cutoff)
	return err
}

// CleanOldLogsByLevel 清理超过指定天数的指定级别日志，返回删除条数
func (ls *LogStorage) CleanOldLogsByLevel(days int, levels []string) (int64, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if len(levels) == 0 {
		return 0, fmt.Errorf("至少需要指定一个日志级别")
	}

	cutoff := time.Now().AddDate(0, 0, -days)

	placeholders := make([]string, len(levels))
	args := make([]interface{}, len(levels)+1)
	for i, level := range levels {
		placeholders[i] = "?"
		args[i] = level
	}
	args[len(levels)] = cutoff

	query := fmt.Sprintf(`
		DELETE FROM logs
		WHERE level IN (%s) AND timestamp < ?
	`, strings.Join(placeholders, ","))

	result, err := ls.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetLogStats 获取日志统计信息
func (ls *LogStorage) GetLogStats() (map[string]interface{}, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	stats := make(map[string]interface{})

	var total int64
	if err := ls.db.QueryRow("SELECT COUNT(*) FROM logs").Scan(&total); err != nil {
		return nil, err
	}
	stats["total"] = total

	levelStats := make(map[string]int64)
	rows, err := ls.db.Query("SELECT level, COUNT(*) FROM logs GROUP BY level")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var level string
		var count int64
		if err := rows.Scan(&level, &count); err != nil {
			continue
		}
		levelStats[level] = count
	}
	stats["by_level"] = levelStats

	return stats, nil
}

// Vacuum 优化日志数据库（回收空间）
func (ls *LogStorage) Vacuum() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	_, err := ls.db.Exec("VACUUM")
	return err
}

// Close 关闭日志存储
func (ls *LogStorage) Close() error {
	if !ls.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(ls.logCh)

	ls.subMu.Lock()
	for _, sub := range ls.subscribers {
		close(sub)
	}
	ls.subscribers = nil
	ls.subMu.Unlock()

	// 给 flushLoop 一点时间把缓冲写完
	time.Sleep(100 * time.Millisecond)

	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.db.Close()
}
