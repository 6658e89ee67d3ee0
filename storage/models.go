package storage

import "time"

// CandleCoverage K线缓存覆盖范围
type CandleCoverage struct {
	Symbol    string `json:"symbol"`
	Interval  string `json:"interval"`
	FirstTime int64  `json:"first_time"` // 最早一根K线的时间戳（毫秒）
	LastTime  int64  `json:"last_time"`  // 最晚一根K线的时间戳（毫秒）
	Count     int    `json:"count"`
}

// SystemMetricsRecord 系统监控采样记录
type SystemMetricsRecord struct {
	ID            int64     `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryMB      float64   `json:"memory_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	Goroutines    int       `json:"goroutines"`
	ProcessID     int       `json:"process_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// LogRecord 日志记录
type LogRecord struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// LogQueryParams 日志查询参数
type LogQueryParams struct {
	StartTime time.Time
	EndTime   time.Time
	Level     string
	Keyword   string
	Limit     int
	Offset    int
}

// StorageStats 存储统计信息
type StorageStats struct {
	CandleCount  int64            `json:"candle_count"`
	MetricsCount int64            `json:"metrics_count"`
	Coverage     []CandleCoverage `json:"coverage"`
}
