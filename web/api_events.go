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

// getEvents 获取事件列表
// GET /api/events
// 参数：
//   - type: 事件类型（可选）
//   - severity: 严重程度（可选，critical/warning/info）
//   - source: 事件源（可选，backtest/optimizer/datasource/system/config）
//   - symbol: 交易对（可选）
//   - start_time / end_time: 时间范围（可选，RFC3339）
//   - limit / offset: 分页（默认 100 / 0）
func getEvents(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	filter := &database.EventFilter{
		Type:     c.Query("type"),
		Severity: c.Query("severity"),
		Source:   c.Query("source"),
		Symbol:   c.Query("symbol"),
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

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter.Limit = limit
	filter.Offset = offset

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := db.GetEvents(ctx, filter)
	if err != nil {
		logger.Error("❌ 查询事件失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询事件失败"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// getEventDetail 获取事件详情
// GET /api/events/:id
func getEventDetail(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的事件ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	record, err := db.GetEventByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "事件不存在"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// getEventStats 获取事件统计
// GET /api/events/stats
func getEventStats(c *gin.Context) {
	if db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "数据库未注入"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	stats, err := db.GetEventStats(ctx)
	if err != nil {
		logger.Error("❌ 查询事件统计失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询事件统计失败"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// registerEventRoutes 注册事件查询路由，认证由上层路由组统一处理
func registerEventRoutes(r *gin.RouterGroup) {
	events := r.Group("/events")
	{
		events.GET("", getEvents)
		events.GET("/stats", getEventStats)
		events.GET("/:id", getEventDetail)
	}
}
