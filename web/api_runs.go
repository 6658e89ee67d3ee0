package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"quantforge/database"
	"quantforge/logger"
)

// parseRunFilter 解析回测/寻优历史查询的通用过滤参数
func parseRunFilter(c *gin.Context) *database.RunFilter {
	filter := &database.RunFilter{
		Symbol:   c.Query("symbol"),
		Strategy: c.Query("strategy"),
	}

	if startStr := c.Query("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &t
		}
	}
	if endStr := c.Query("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &t
		}
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	filter.Limit = limit
	filter.Offset = offset

	return filter
}

// listBacktestRuns 查询回测历史
// GET /api/runs?symbol=&strategy=&start_time=&end_time=&limit=&offset=
func listBacktestRuns(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	runs, err := db.GetBacktestRuns(ctx, parseRunFilter(c))
	if err != nil {
		logger.Error("❌ 查询回测历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询回测历史失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// getBacktestRunDetail 查询单次回测记录
// GET /api/runs/:run_id
func getBacktestRunDetail(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	run, err := db.GetBacktestRun(ctx, c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "回测记录不存在"})
		return
	}

	c.JSON(http.StatusOK, run)
}

// getBacktestRunTrades 查询单次回测的成交明细
// GET /api/runs/:run_id/trades
func getBacktestRunTrades(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 || limit > 2000 {
		limit = 200
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	trades, err := db.GetTrades(ctx, &database.TradeFilter{
		RunID:  c.Param("run_id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		logger.Error("❌ 查询成交明细失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询成交明细失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// listOptimizationRuns 查询寻优历史
// GET /api/optimizations
func listOptimizationRuns(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	runs, err := db.GetOptimizationRuns(ctx, parseRunFilter(c))
	if err != nil {
		logger.Error("❌ 查询寻优历史失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询寻优历史失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// getOptimizationRunDetail 查询单次寻优记录
// GET /api/optimizations/:run_id
func getOptimizationRunDetail(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	run, err := db.GetOptimizationRun(ctx, c.Param("run_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "寻优记录不存在"})
		return
	}

	c.JSON(http.StatusOK, run)
}
