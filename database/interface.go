package database

import (
	"context"
	"math"
	"time"
)

// Database 数据库接口
type Database interface {
	// 回测记录
	SaveBacktestRun(ctx context.Context, run *BacktestRun) error
	GetBacktestRun(ctx context.Context, runID string) (*BacktestRun, error)
	GetBacktestRuns(ctx context.Context, filter *RunFilter) ([]*BacktestRun, error)

	// 寻优记录
	SaveOptimizationRun(ctx context.Context, run *OptimizationRun) error
	GetOptimizationRun(ctx context.Context, runID string) (*OptimizationRun, error)
	GetOptimizationRuns(ctx context.Context, filter *RunFilter) ([]*OptimizationRun, error)

	// 成交明细
	BatchSaveTrades(ctx context.Context, trades []*TradeRecord) error
	GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error)

	// 事件
	SaveEvent(ctx context.Context, event *EventRecord) error
	GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error)
	GetEventByID(ctx context.Context, id int64) (*EventRecord, error)
	GetEventStats(ctx context.Context) (*EventStats, error)
	CleanupOldEvents(ctx context.Context, severity string, keepCount int, keepDays int) error

	// 事务支持
	BeginTx(ctx context.Context) (Tx, error)

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// Tx 事务接口
type Tx interface {
	Commit() error
	Rollback() error
	Database // 继承所有数据库操作
}

// 数据模型

// BacktestRun 单次回测的落库记录，指标冗余出常用列便于列表页排序过滤
type BacktestRun struct {
	ID             int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID          string    `gorm:"uniqueIndex;size:64" json:"run_id"`
	Symbol         string    `gorm:"index:idx_symbol_strategy;size:50" json:"symbol"`
	Strategy       string    `gorm:"index:idx_symbol_strategy;size:50" json:"strategy"`
	Interval       string    `gorm:"size:20" json:"interval"`
	ParamsJSON     string    `gorm:"type:text" json:"params_json"`
	Bars           int       `json:"bars"`
	StartTime      int64     `json:"start_time"` // 首根 K 线毫秒时间戳
	EndTime        int64     `json:"end_time"`   // 末根 K 线毫秒时间戳
	InitialCapital float64   `json:"initial_capital"`
	FinalValue     float64   `json:"final_value"`
	TotalReturn    float64   `json:"total_return"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	WinRate        float64   `json:"win_rate"`
	TradeCount     int       `json:"trade_count"`
	MetricsJSON    string    `gorm:"type:text" json:"metrics_json"`
	ElapsedMs      float64   `json:"elapsed_ms"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

// OptimizationRun 单次参数寻优的落库记录
type OptimizationRun struct {
	ID                    int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID                 string    `gorm:"uniqueIndex;size:64" json:"run_id"`
	Symbol                string    `gorm:"index:idx_opt_symbol_strategy;size:50" json:"symbol"`
	Strategy              string    `gorm:"index:idx_opt_symbol_strategy;size:50" json:"strategy"`
	Objective             string    `gorm:"size:50" json:"objective"`
	TotalCombinations     int       `json:"total_combinations"`
	CompletedCombinations int       `json:"completed_combinations"`
	BestScore             float64   `json:"best_score"`
	BestParamsJSON        string    `gorm:"type:text" json:"best_params_json"`
	ResultsJSON           string    `gorm:"type:text" json:"results_json"` // 排名靠前的评估记录
	Truncated             bool      `json:"truncated"`
	Workers               int       `json:"workers"`
	ParallelEfficiency    float64   `json:"parallel_efficiency"`
	ElapsedMs             float64   `json:"elapsed_ms"`
	CreatedAt             time.Time `gorm:"index" json:"created_at"`
}

// TradeRecord 回测成交明细
type TradeRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID      string    `gorm:"index;size:64" json:"run_id"`
	TradeID    int       `json:"trade_id"`
	Symbol     string    `gorm:"size:50" json:"symbol"`
	EntryTime  int64     `json:"entry_time"`
	ExitTime   int64     `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Quantity   float64   `json:"quantity"`
	PnL        float64   `json:"pnl"`
	Commission float64   `json:"commission"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventRecord 事件记录
type EventRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string    `gorm:"index;size:50" json:"type"`
	Severity  string    `gorm:"index;size:20" json:"severity"`
	Source    string    `gorm:"index;size:50" json:"source"`
	Symbol    string    `gorm:"size:50" json:"symbol"`
	Title     string    `gorm:"size:200" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// EventStats 事件统计
type EventStats struct {
	TotalCount       int            `json:"total_count"`
	CriticalCount    int            `json:"critical_count"`
	WarningCount     int            `json:"warning_count"`
	InfoCount        int            `json:"info_count"`
	Last24HoursCount int            `json:"last_24_hours_count"`
	CountByType      map[string]int `json:"count_by_type"`
	CountBySource    map[string]int `json:"count_by_source"`
}

// 过滤器

// RunFilter 回测/寻优记录过滤器
type RunFilter struct {
	Symbol    string
	Strategy  string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// TradeFilter 成交明细过滤器
type TradeFilter struct {
	RunID  string
	Symbol string
	Limit  int
	Offset int
}

// EventFilter 事件记录过滤器
type EventFilter struct {
	Type      string
	Severity  string
	Source    string
	Symbol    string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Finite 把非有限值压成 0 再入库。MySQL 不接受 ±Inf/NaN 列值，
// 完整数值保留在经过净化的 JSON 列里。
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
