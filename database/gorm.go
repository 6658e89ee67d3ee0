package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// DBConfig 数据库配置
type DBConfig struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// NewGormDatabase 创建 GORM 数据库实例
func NewGormDatabase(config *DBConfig) (*GormDatabase, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	// 日志级别
	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	// 打开数据库
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 获取底层 sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// 配置连接池
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&BacktestRun{},
		&OptimizationRun{},
		&TradeRecord{},
		&EventRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{db: db}, nil
}

// SaveBacktestRun 保存回测记录
func (g *GormDatabase) SaveBacktestRun(ctx context.Context, run *BacktestRun) error {
	return g.db.WithContext(ctx).Create(run).Error
}

// GetBacktestRun 按 RunID 获取回测记录
func (g *GormDatabase) GetBacktestRun(ctx context.Context, runID string) (*BacktestRun, error) {
	var run BacktestRun
	if err := g.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetBacktestRuns 获取回测记录列表
func (g *GormDatabase) GetBacktestRuns(ctx context.Context, filter *RunFilter) ([]*BacktestRun, error) {
	query := g.db.WithContext(ctx).Model(&BacktestRun{})
	query = applyRunFilter(query, filter)

	var runs []*BacktestRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}

// SaveOptimizationRun 保存寻优记录
func (g *GormDatabase) SaveOptimizationRun(ctx context.Context, run *OptimizationRun) error {
	return g.db.WithContext(ctx).Create(run).Error
}

// GetOptimizationRun 按 RunID 获取寻优记录
func (g *GormDatabase) GetOptimizationRun(ctx context.Context, runID string) (*OptimizationRun, error) {
	var run OptimizationRun
	if err := g.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetOptimizationRuns 获取寻优记录列表
func (g *GormDatabase) GetOptimizationRuns(ctx context.Context, filter *RunFilter) ([]*OptimizationRun, error) {
	query := g.db.WithContext(ctx).Model(&OptimizationRun{})
	query = applyRunFilter(query, filter)

	var runs []*OptimizationRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}

	return runs, nil
}

// applyRunFilter 回测和寻优列表共用的过滤与分页
func applyRunFilter(query *gorm.DB, filter *RunFilter) *gorm.DB {
	if filter == nil {
		return query.Order("created_at DESC")
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.Strategy != "" {
		query = query.Where("strategy = ?", filter.Strategy)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	return query
}

// BatchSaveTrades 批量保存成交明细
func (g *GormDatabase) BatchSaveTrades(ctx context.Context, trades []*TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).CreateInBatches(trades, 100).Error
}

// GetTrades 获取成交明细
func (g *GormDatabase) GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error) {
	query := g.db.WithContext(ctx).Model(&TradeRecord{})

	if filter.RunID != "" {
		query = query.Where("run_id = ?", filter.RunID)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}

	query = query.Order("trade_id ASC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var trades []*TradeRecord
	if err := query.Find(&trades).Error; err != nil {
		return nil, err
	}

	return trades, nil
}

// SaveEvent 保存事件记录
func (g *GormDatabase) SaveEvent(ctx context.Context, event *EventRecord) error {
	return g.db.WithContext(ctx).Create(event).Error
}

// GetEvents 获取事件记录
func (g *GormDatabase) GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error) {
	query := g.db.WithContext(ctx).Model(&EventRecord{})

	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}

	query = query.Order("created_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var events []*EventRecord
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}

// GetEventByID 按主键获取事件记录
func (g *GormDatabase) GetEventByID(ctx context.Context, id int64) (*EventRecord, error) {
	var event EventRecord
	if err := g.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEventStats 获取事件统计
func (g *GormDatabase) GetEventStats(ctx context.Context) (*EventStats, error) {
	stats := &EventStats{
		CountByType:   make(map[string]int),
		CountBySource: make(map[string]int),
	}

	// 总数
	var totalCount int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Count(&totalCount)
	stats.TotalCount = int(totalCount)

	// 按严重程度统计
	var criticalCount, warningCount, infoCount int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", "critical").Count(&criticalCount)
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", "warning").Count(&warningCount)
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", "info").Count(&infoCount)
	stats.CriticalCount = int(criticalCount)
	stats.WarningCount = int(warningCount)
	stats.InfoCount = int(infoCount)

	// 最近24小时
	last24h := time.Now().Add(-24 * time.Hour)
	var last24hCount int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("created_at >= ?", last24h).Count(&last24hCount)
	stats.Last24HoursCount = int(last24hCount)

	// 按类型统计（top 20）
	var typeStats []struct {
		Type  string
		Count int
	}
	g.db.WithContext(ctx).Model(&EventRecord{}).
		Select("type, COUNT(*) as count").
		Group("type").
		Order("count DESC").
		Limit(20).
		Scan(&typeStats)
	for _, ts := range typeStats {
		stats.CountByType[ts.Type] = ts.Count
	}

	// 按来源统计
	var sourceStats []struct {
		Source string
		Count  int
	}
	g.db.WithContext(ctx).Model(&EventRecord{}).
		Select("source, COUNT(*) as count").
		Group("source").
		Scan(&sourceStats)
	for _, ss := range sourceStats {
		stats.CountBySource[ss.Source] = ss.Count
	}

	return stats, nil
}

// CleanupOldEvents 清理旧事件
func (g *GormDatabase) CleanupOldEvents(ctx context.Context, severity string, keepCount int, keepDays int) error {
	// 按时间清理：删除超过指定天数的事件
	cutoffDate := time.Now().AddDate(0, 0, -keepDays)
	if err := g.db.WithContext(ctx).
		Where("severity = ? AND created_at < ?", severity, cutoffDate).
		Delete(&EventRecord{}).Error; err != nil {
		return err
	}

	// 按数量清理：保留最新的 keepCount 条
	var count int64
	g.db.WithContext(ctx).Model(&EventRecord{}).Where("severity = ?", severity).Count(&count)

	if int(count) > keepCount {
		// 获取需要保留的最老记录的ID
		var cutoffID int64
		g.db.WithContext(ctx).Model(&EventRecord{}).
			Where("severity = ?", severity).
			Order("created_at DESC").
			Limit(1).
			Offset(keepCount).
			Pluck("id", &cutoffID)

		// 删除ID小于cutoffID的记录
		if cutoffID > 0 {
			if err := g.db.WithContext(ctx).
				Where("severity = ? AND id < ?", severity, cutoffID).
				Delete(&EventRecord{}).Error; err != nil {
				return err
			}
		}
	}

	return nil
}

// BeginTx 开始事务
func (g *GormDatabase) BeginTx(ctx context.Context) (Tx, error) {
	tx := g.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &GormTx{tx: tx}, nil
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GormTx GORM 事务实现，只支持写入，查询走主连接
type GormTx struct {
	tx *gorm.DB
}

func (t *GormTx) Commit() error {
	return t.tx.Commit().Error
}

func (t *GormTx) Rollback() error {
	return t.tx.Rollback().Error
}

func (t *GormTx) SaveBacktestRun(ctx context.Context, run *BacktestRun) error {
	return t.tx.WithContext(ctx).Create(run).Error
}

func (t *GormTx) GetBacktestRun(ctx context.Context, runID string) (*BacktestRun, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) GetBacktestRuns(ctx context.Context, filter *RunFilter) ([]*BacktestRun, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) SaveOptimizationRun(ctx context.Context, run *OptimizationRun) error {
	return t.tx.WithContext(ctx).Create(run).Error
}

func (t *GormTx) GetOptimizationRun(ctx context.Context, runID string) (*OptimizationRun, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) GetOptimizationRuns(ctx context.Context, filter *RunFilter) ([]*OptimizationRun, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) BatchSaveTrades(ctx context.Context, trades []*TradeRecord) error {
	return t.tx.WithContext(ctx).CreateInBatches(trades, 100).Error
}

func (t *GormTx) GetTrades(ctx context.Context, filter *TradeFilter) ([]*TradeRecord, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) SaveEvent(ctx context.Context, event *EventRecord) error {
	return t.tx.WithContext(ctx).Create(event).Error
}

func (t *GormTx) GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) GetEventByID(ctx context.Context, id int64) (*EventRecord, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) GetEventStats(ctx context.Context) (*EventStats, error) {
	return nil, fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) CleanupOldEvents(ctx context.Context, severity string, keepCount int, keepDays int) error {
	return fmt.Errorf("not implemented in transaction")
}

func (t *GormTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *GormTx) Ping(ctx context.Context) error {
	return nil
}

func (t *GormTx) Close() error {
	return nil
}
