package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"quantforge/logger"
	"quantforge/monitor"
	"quantforge/storage"
)

// getLogs 查询历史日志
// GET /api/logs
// 参数：
//   - start_time: 开始时间（可选，RFC3339，默认最近7天）
//   - end_time: 结束时间（可选，RFC3339，默认当前时间）
//   - level: 日志级别（可选，DEBUG/INFO/WARN/ERROR/FATAL）
//   - keyword: 关键词搜索（可选）
//   - limit: 每页数量（默认100，最大1000）
//   - offset: 偏移量（默认0）
func getLogs(c *gin.Context) {
	if storageService == nil || storageService.Logs() == nil {
		c.JSON(http.StatusOK, gin.H{"logs": []interface{}{}, "total": 0})
		return
	}

	var startTime, endTime time.Time
	var err error

	if startStr := c.Query("start_time"); startStr != "" {
		startTime, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的开始时间格式"})
			return
		}
	}
	if endStr := c.Query("end_time"); endStr != "" {
		endTime, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的结束时间格式"})
			return
		}
	} else {
		endTime = time.Now()
	}
	if startTime.IsZero() {
		startTime = endTime.AddDate(0, 0, -7)
	}

	limit := 100
	if l, err := strconv.Atoi(c.DefaultQuery("limit", "100")); err == nil && l > 0 {
		limit = l
		if limit > 1000 {
			limit = 1000
		}
	}
	offset := 0
	if o, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil && o >= 0 {
		offset = o
	}

	logs, total, err := storageService.Logs().GetLogs(storage.LogQueryParams{
		StartTime: startTime,
		EndTime:   endTime,
		Level:     c.Query("level"),
		Keyword:   c.Query("keyword"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// getLogStats 查询日志统计（按级别计数、总量、占用）
// GET /api/logs/stats
func getLogStats(c *gin.Context) {
	if storageService == nil || storageService.Logs() == nil {
		c.JSON(http.StatusOK, gin.H{"stats": gin.H{}})
		return
	}

	stats, err := storageService.Logs().GetLogStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// getSystemMetrics 查询历史系统监控采样
// GET /api/system/metrics?start_time=&end_time=
func getSystemMetrics(c *gin.Context) {
	if storageService == nil || storageService.Store() == nil {
		c.JSON(http.StatusOK, gin.H{"metrics": []interface{}{}, "count": 0})
		return
	}

	endTime := time.Now()
	startTime := endTime.Add(-24 * time.Hour)
	var err error

	if startStr := c.Query("start_time"); startStr != "" {
		startTime, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的开始时间格式"})
			return
		}
	}
	if endStr := c.Query("end_time"); endStr != "" {
		endTime, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的结束时间格式"})
			return
		}
	}

	// 限制查询范围，避免一次吐出过多采样
	if endTime.Sub(startTime) > 7*24*time.Hour {
		startTime = endTime.Add(-7 * 24 * time.Hour)
	}

	records, err := storageService.Store().QuerySystemMetrics(startTime, endTime)
	if err != nil {
		logger.Error("❌ 查询系统监控数据失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询系统监控数据失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"metrics": records, "count": len(records)})
}

// getCurrentSystemMetrics 获取当前系统状态，实时采集失败时回退到最近一次落库的采样
// GET /api/system/metrics/current
func getCurrentSystemMetrics(c *gin.Context) {
	if m, err := monitor.CollectSystemMetrics(); err == nil && m != nil {
		c.JSON(http.StatusOK, gin.H{
			"timestamp":      m.Timestamp,
			"cpu_percent":    m.CPUPercent,
			"memory_mb":      m.MemoryMB,
			"memory_percent": m.MemoryPercent,
			"goroutines":     m.Goroutines,
			"process_id":     m.ProcessID,
		})
		return
	}

	if storageService != nil && storageService.Store() != nil {
		if latest, err := storageService.Store().GetLatestSystemMetrics(); err == nil && latest != nil {
			c.JSON(http.StatusOK, gin.H{
				"timestamp":      latest.Timestamp,
				"cpu_percent":    latest.CPUPercent,
				"memory_mb":      latest.MemoryMB,
				"memory_percent": latest.MemoryPercent,
				"goroutines":     latest.Goroutines,
				"process_id":     latest.ProcessID,
			})
			return
		}
	}

	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "系统监控数据不可用"})
}
