package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"quantforge/backtest"
	"quantforge/cache"
	"quantforge/database"
	"quantforge/event"
	"quantforge/logger"
	"quantforge/metrics"
	"quantforge/strategy"
)

// BacktestRequest 回测请求
type BacktestRequest struct {
	Strategy  string               `json:"strategy" binding:"required"` // 策略名，见 /api/strategies
	Symbol    string               `json:"symbol" binding:"required"`   // "BTCUSDT"
	Interval  string               `json:"interval" binding:"required"` // "1m", "5m", "1h"
	StartTime time.Time            `json:"start_time" binding:"required"`
	EndTime   time.Time            `json:"end_time" binding:"required"`
	Params    map[string]float64   `json:"parameters"`     // 缺省参数用策略默认值
	Cost      *backtest.CostConfig `json:"cost"`           // 缺省用全局成本配置
	Trades    bool                 `json:"include_trades"` // 响应里带成交明细
	Equity    bool                 `json:"include_equity"` // 响应里带权益曲线
	Report    bool                 `json:"save_report"`    // 生成 Markdown 报告和图表
}

// BacktestResponse 回测响应
type BacktestResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	RunID      string             `json:"run_id,omitempty"`
	Candles    int                `json:"candles,omitempty"`
	Params     map[string]float64 `json:"parameters,omitempty"`
	CacheHit   bool               `json:"cache_hit"`
	Result     *backtest.Result   `json:"result,omitempty"`
	ReportPath string             `json:"report_path,omitempty"`
	EquityPath string             `json:"equity_path,omitempty"`
	ChartPath  string             `json:"chart_path,omitempty"`
}

// runBacktest 运行回测
// POST /api/backtest/run
func runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, BacktestResponse{
			Success: false,
			Message: fmt.Sprintf("请求参数错误: %v", err),
		})
		return
	}

	// 1. 校验策略和参数
	params := effectiveParams(req.Strategy, req.Params)
	variant, err := strategy.FromParams(req.Strategy, params)
	if err != nil {
		c.JSON(http.StatusBadRequest, BacktestResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	// 2. 校验时间范围和成本配置
	if !req.EndTime.After(req.StartTime) {
		c.JSON(http.StatusBadRequest, BacktestResponse{
			Success: false,
			Message: "结束时间必须晚于开始时间",
		})
		return
	}
	cost := backtest.DefaultCostConfig()
	if configReloader != nil {
		cost = configReloader.GetCurrentConfig().Engine.Cost
	}
	if req.Cost != nil {
		cost = *req.Cost
	}
	if err := cost.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, BacktestResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	logger.Info("📊 开始回测: 策略=%s, 交易对=%s, 周期=%s", req.Strategy, req.Symbol, req.Interval)

	// 3. 获取历史数据（优先缓存）
	if dataManager == nil {
		c.JSON(http.StatusServiceUnavailable, BacktestResponse{
			Success: false,
			Message: "数据管理器未注入",
		})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	candles, err := dataManager.GetCandles(ctx, req.Symbol, req.Interval, req.StartTime.UnixMilli(), req.EndTime.UnixMilli())
	if err != nil {
		c.JSON(http.StatusBadGateway, BacktestResponse{
			Success: false,
			Message: fmt.Sprintf("获取历史数据失败: %v", err),
		})
		return
	}
	if len(candles) == 0 {
		c.JSON(http.StatusBadRequest, BacktestResponse{
			Success: false,
			Message: "未获取到历史数据",
		})
		return
	}

	// 4. 查指标缓存，纯指标请求命中后直接返回，不再重算
	dataset := fmt.Sprintf("%s:%s:%d-%d", req.Symbol, req.Interval, candles[0].Time, candles[len(candles)-1].Time)
	cacheKey := cache.BuildKey(dataset, req.Strategy, params, cost)
	wantsDetail := req.Trades || req.Equity || req.Report
	if scoreCache != nil && !wantsDetail {
		if cached, ok, err := scoreCache.GetMetrics(ctx, cacheKey); err == nil && ok {
			metrics.GetPrometheusMetrics().RecordCacheHit("score")
			logger.Info("✅ 回测缓存命中: %s %s", req.Strategy, req.Symbol)
			c.JSON(http.StatusOK, BacktestResponse{
				Success:  true,
				Message:  "回测完成（缓存）",
				Candles:  len(candles),
				Params:   params,
				CacheHit: true,
				Result:   &backtest.Result{Metrics: *cached, Config: cost},
			})
			return
		}
		metrics.GetPrometheusMetrics().RecordCacheMiss("score")
	}

	// 5. 运行回测
	begin := time.Now()
	result, err := strategy.RunStrategyBacktest(candles, variant, cost)
	if err != nil {
		metrics.GetPrometheusMetrics().RecordBacktest(req.Strategy, "failed", time.Since(begin))
		status := http.StatusInternalServerError
		var vErr *backtest.ValidationError
		var dErr *backtest.InsufficientDataError
		if errors.As(err, &vErr) || errors.As(err, &dErr) {
			status = http.StatusBadRequest
		}
		logger.Error("❌ 回测失败: %v", err)
		c.JSON(status, BacktestResponse{
			Success: false,
			Message: fmt.Sprintf("回测失败: %v", err),
		})
		return
	}
	elapsed := time.Since(begin)
	metrics.GetPrometheusMetrics().RecordBacktest(req.Strategy, "success", elapsed)
	if statsCollector != nil {
		statsCollector.RecordBacktestRun(float64(elapsed.Milliseconds()))
	}

	// 6. 回填指标缓存
	if scoreCache != nil {
		if err := scoreCache.SetMetrics(ctx, cacheKey, &result.Metrics, scoreCacheTTL); err != nil {
			logger.Warn("⚠️ 回测缓存写入失败: %v", err)
		}
	}

	// 7. 落库
	runID := uuid.NewString()
	if err := persistBacktestRun(ctx, runID, &req, params, candles[0].Time, candles[len(candles)-1].Time, len(candles), result, elapsed); err != nil {
		logger.Warn("⚠️ 回测记录落库失败: %v", err)
	}

	// 8. 发布事件
	if eventBus != nil {
		eventBus.Publish(&event.Event{
			Type:      event.EventTypeBacktestCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"run_id":       runID,
				"symbol":       req.Symbol,
				"strategy":     req.Strategy,
				"total_return": result.Metrics.TotalReturn,
				"sharpe_ratio": result.Metrics.SharpeRatio,
				"max_drawdown": result.Metrics.MaxDrawdown,
				"trades":       result.Metrics.TradeCount,
				"elapsed_ms":   float64(elapsed.Milliseconds()),
			},
		})
	}

	// 9. 按需生成报告
	resp := BacktestResponse{
		Success: true,
		Message: "回测完成",
		RunID:   runID,
		Candles: len(candles),
		Params:  params,
	}
	if req.Report {
		meta := backtest.ReportMeta{Strategy: req.Strategy, Symbol: req.Symbol}
		if path, err := backtest.GenerateReport(result, meta); err != nil {
			logger.Warn("⚠️ 生成报告失败: %v", err)
		} else {
			logger.Info("📄 报告已生成: %s", path)
			resp.ReportPath = path
		}
		if path, err := backtest.SaveEquityCurveCSV(result, meta); err != nil {
			logger.Warn("⚠️ 保存权益曲线失败: %v", err)
		} else {
			resp.EquityPath = path
		}
		if path, err := backtest.SaveEquityChartHTML(result, meta); err != nil {
			logger.Warn("⚠️ 生成权益图表失败: %v", err)
		} else {
			resp.ChartPath = path
		}
	}

	logger.Info("✅ 回测完成: 总收益率=%.2f%%, 夏普比率=%.2f, 成交=%d 笔",
		result.Metrics.TotalReturn*100, result.Metrics.SharpeRatio, result.Metrics.TradeCount)

	// 明细默认不随响应返回，权益曲线和成交都可能很长
	trimmed := *result
	if !req.Trades {
		trimmed.Trades = nil
	}
	if !req.Equity {
		trimmed.EquityCurve = nil
	}
	resp.Result = &trimmed

	c.JSON(http.StatusOK, resp)
}

// effectiveParams 把请求参数和策略默认值合并成完整参数表
func effectiveParams(kind string, overrides map[string]float64) map[string]float64 {
	for _, entry := range strategy.Catalogue() {
		if entry.Kind != kind {
			continue
		}
		params := make(map[string]float64, len(entry.Params))
		for _, spec := range entry.Params {
			if v, ok := overrides[spec.Name]; ok {
				params[spec.Name] = v
			} else {
				params[spec.Name] = spec.Default
			}
		}
		return params
	}
	return overrides
}

// persistBacktestRun 把回测结果写进数据库，指标冗余出常用列
func persistBacktestRun(ctx context.Context, runID string, req *BacktestRequest, params map[string]float64,
	firstTime, lastTime int64, bars int, result *backtest.Result, elapsed time.Duration) error {
	if db == nil {
		return nil
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return err
	}
	metricsJSON, err := json.Marshal(result.Metrics)
	if err != nil {
		return err
	}

	run := &database.BacktestRun{
		RunID:          runID,
		Symbol:         req.Symbol,
		Strategy:       req.Strategy,
		Interval:       req.Interval,
		ParamsJSON:     string(paramsJSON),
		Bars:           bars,
		StartTime:      firstTime,
		EndTime:        lastTime,
		InitialCapital: result.Config.InitialCapital,
		FinalValue:     result.FinalValue,
		TotalReturn:    result.Metrics.TotalReturn,
		SharpeRatio:    result.Metrics.SharpeRatio,
		MaxDrawdown:    result.Metrics.MaxDrawdown,
		WinRate:        result.Metrics.WinRate,
		TradeCount:     result.Metrics.TradeCount,
		MetricsJSON:    string(metricsJSON),
		ElapsedMs:      float64(elapsed.Milliseconds()),
	}
	if err := db.SaveBacktestRun(ctx, run); err != nil {
		return err
	}

	if len(result.Trades) == 0 {
		return nil
	}
	trades := make([]*database.TradeRecord, len(result.Trades))
	for i, t := range result.Trades {
		trades[i] = &database.TradeRecord{
			RunID:      runID,
			TradeID:    t.ID,
			Symbol:     req.Symbol,
			EntryTime:  t.EntryTimestamp,
			ExitTime:   t.ExitTimestamp,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Quantity:   t.Quantity,
			PnL:        t.PnL,
			Commission: t.Commission,
		}
	}
	return db.BatchSaveTrades(ctx, trades)
}
