package storage

import (
	"database/sql"
	"fmt"

	"quantforge/indicators"
)

// SaveCandles 批量写入K线（按主键去重，重复写入覆盖旧值）
func (s *SQLiteStorage) SaveCandles(symbol, interval string, candles []indicators.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// 使用事务批量插入
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("准备插入语句失败: %w", err)
	}
	defer stmt.Close()

	for i := range candles {
		c := &candles[i]
		if _, err := stmt.Exec(symbol, interval, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("写入K线失败 (ts=%d): %w", c.Time, err)
		}
	}

	return tx.Commit()
}

// QueryCandles 查询时间范围内的K线，按时间升序返回。
// startTime/endTime 为毫秒时间戳，闭区间；endTime <= 0 表示不限制上界；limit <= 0 表示不限制条数。
func (s *SQLiteStorage) QueryCandles(symbol, interval string, startTime, endTime int64, limit int) ([]indicators.Candle, error) {
	query := `
		SELECT ts, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND interval = ? AND ts >= ?
	`
	args := []interface{}{symbol, interval, startTime}

	if endTime > 0 {
		query += " AND ts <= ?"
		args = append(args, endTime)
	}

	query += " ORDER BY ts ASC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询K线失败: %w", err)
	}
	defer rows.Close()

	var candles []indicators.Candle
	for rows.Next() {
		var c indicators.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("读取K线行失败: %w", err)
		}
		candles = append(candles, c)
	}

	return candles, rows.Err()
}

// GetCandleCoverage 返回指定交易对和周期的缓存覆盖范围，无数据时返回 nil
func (s *SQLiteStorage) GetCandleCoverage(symbol, interval string) (*CandleCoverage, error) {
	var first, last sql.NullInt64
	var count int

	err := s.db.QueryRow(`
		SELECT MIN(ts), MAX(ts), COUNT(*)
		FROM candles
		WHERE symbol = ? AND interval = ?
	`, symbol, interval).Scan(&first, &last, &count)
	if err != nil {
		return nil, fmt.Errorf("查询K线覆盖范围失败: %w", err)
	}

	if count == 0 || !first.Valid || !last.Valid {
		return nil, nil
	}

	return &CandleCoverage{
		Symbol:    symbol,
		Interval:  interval,
		FirstTime: first.Int64,
		LastTime:  last.Int64,
		Count:     count,
	}, nil
}

// CleanupCandles 删除指定时间戳之前的K线，返回删除条数
func (s *SQLiteStorage) CleanupCandles(symbol, interval string, beforeTime int64) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM candles
		WHERE symbol = ? AND interval = ? AND ts < ?
	`, symbol, interval, beforeTime)
	if err != nil {
		return 0, fmt.Errorf("清理K线失败: %w", err)
	}
	return result.RowsAffected()
}
