package storage

import (
	"database/sql"
	"fmt"
	"time"

	"quantforge/monitor"
	"quantforge/utils"
)

// SaveSystemMetrics 写入一条系统监控采样
func (s *SQLiteStorage) SaveSystemMetrics(m *monitor.SystemMetrics) error {
	if m == nil {
		return nil
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = utils.NowUTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO system_metrics (timestamp, cpu_percent, memory_mb, memory_percent, goroutines, process_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, utils.ToUTC(ts), m.CPUPercent, m.MemoryMB, m.MemoryPercent, m.Goroutines, m.ProcessID)
	if err != nil {
		return fmt.Errorf("写入系统监控采样失败: %w", err)
	}
	return nil
}

// QuerySystemMetrics 查询时间范围内的系统监控采样
func (s *SQLiteStorage) QuerySystemMetrics(startTime, endTime time.Time) ([]*SystemMetricsRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, timestamp, cpu_percent, memory_mb, memory_percent, goroutines, process_id, created_at
		FROM system_metrics
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, utils.ToUTC(startTime), utils.ToUTC(endTime))
	if err != nil {
		return nil, fmt.Errorf("查询系统监控数据失败: %w", err)
	}
	defer rows.Close()

	var records []*SystemMetricsRecord
	for rows.Next() {
		r := &SystemMetricsRecord{}
		var memoryPercent sql.NullFloat64
		err := rows.Scan(
			&r.ID,
			&r.Timestamp,
			&r.CPUPercent,
			&r.MemoryMB,
			&memoryPercent,
			&r.Goroutines,
			&r.ProcessID,
			&r.CreatedAt,
		)
		if err != nil {
			continue
		}
		if memoryPercent.Valid {
			r.MemoryPercent = memoryPercent.Float64
		}
		records = append(records, r)
	}

	return records, nil
}

// GetLatestSystemMetrics 获取最新的系统监控采样，无数据时返回 nil
func (s *SQLiteStorage) GetLatestSystemMetrics() (*SystemMetricsRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, timestamp, cpu_percent, memory_mb, memory_percent, goroutines, process_id, created_at
		FROM system_metrics
		ORDER BY timestamp DESC
		LIMIT 1
	`)

	r := &SystemMetricsRecord{}
	var memoryPercent sql.NullFloat64
	err := row.Scan(
		&r.ID,
		&r.Timestamp,
		&r.CPUPercent,
		&r.MemoryMB,
		&memoryPercent,
		&r.Goroutines,
		&r.ProcessID,
		&r.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("查询最新监控数据失败: %w", err)
	}

	if memoryPercent.Valid {
		r.MemoryPercent = memoryPercent.Float64
	}

	return r, nil
}

// CleanupSystemMetrics 清理指定时间之前的监控采样
func (s *SQLiteStorage) CleanupSystemMetrics(beforeTime time.Time) error {
	_, err := s.db.Exec(`
		DELETE FROM system_metrics
		WHERE timestamp < ?
	`, utils.ToUTC(beforeTime))
	return err
}
