package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"quantforge/logger"
)

// getKlines 查询K线（优先本地缓存，缺口自动补抓）
// GET /api/klines?symbol=&interval=&start_time=&end_time=&limit=
func getKlines(c *gin.Context) {
	if dataManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据管理器未注入"})
		return
	}

	symbol := c.Query("symbol")
	interval := c.Query("interval")
	if symbol == "" || interval == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 symbol 或 interval 参数"})
		return
	}

	startMs, endMs, ok := parseRFC3339Range(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	if limit <= 0 || limit > 10000 {
		limit = 1000
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	candles, err := dataManager.GetCandles(ctx, symbol, interval, startMs, endMs)
	if err != nil {
		logger.Error("❌ 查询K线失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": fmt.Sprintf("查询K线失败: %v", err)})
		return
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": interval,
		"klines":   candles,
		"count":    len(candles),
	})
}

// ImportDataRequest 数据文件导入请求
type ImportDataRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Interval string `json:"interval" binding:"required"`
	Path     string `json:"path" binding:"required"` // 服务器本地的 CSV 或 Parquet 文件路径
}

// importDataFile 把本地数据文件导入K线缓存
// POST /api/data/import
func importDataFile(c *gin.Context) {
	if dataManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据管理器未注入"})
		return
	}

	var req ImportDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("请求参数错误: %v", err)})
		return
	}

	count, err := dataManager.ImportFile(req.Symbol, req.Interval, req.Path)
	if err != nil {
		logger.Error("❌ 导入数据文件失败: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("导入失败: %v", err)})
		return
	}

	logger.Info("📥 已导入 %d 根K线: %s %s <- %s", count, req.Symbol, req.Interval, req.Path)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"symbol":   req.Symbol,
		"interval": req.Interval,
		"imported": count,
	})
}
