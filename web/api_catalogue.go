package web

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"quantforge/indicators"
	"quantforge/optimizer"
	"quantforge/strategy"
)

// getStrategies 获取策略目录（名称 + 参数表及默认值）
// GET /api/strategies
func getStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"strategies": strategy.Catalogue(),
		"count":      len(strategy.Catalogue()),
	})
}

// getIndicators 获取已注册的指标列表
// GET /api/indicators
func getIndicators(c *gin.Context) {
	names := indicators.ListIndicators()
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{
		"indicators": names,
		"count":      len(names),
	})
}

// getObjectives 获取支持的寻优目标
// GET /api/objectives
func getObjectives(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"objectives": optimizer.Objectives(),
	})
}
