package web

import (
	"net/http"
	"net/http/pprof"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"quantforge/config"
)

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine, cfg *config.Config) {
	// 健康检查（不需要认证，供探活使用）
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus metrics 端点（不需要认证，供 Prometheus 抓取）
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// pprof 性能分析端点（默认关闭，web.pprof.enabled 打开）
	if cfg.Web.Pprof.Enabled {
		pprofGroup := r.Group("/debug/pprof")
		{
			pprofGroup.GET("/", gin.WrapF(pprof.Index))
			pprofGroup.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			pprofGroup.GET("/profile", gin.WrapF(pprof.Profile))
			pprofGroup.POST("/symbol", gin.WrapF(pprof.Symbol))
			pprofGroup.GET("/symbol", gin.WrapF(pprof.Symbol))
			pprofGroup.GET("/trace", gin.WrapF(pprof.Trace))
			pprofGroup.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
			pprofGroup.GET("/block", gin.WrapH(pprof.Handler("block")))
			pprofGroup.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
			pprofGroup.GET("/heap", gin.WrapH(pprof.Handler("heap")))
			pprofGroup.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
			pprofGroup.GET("/threadcreate", gin.WrapH(pprof.Handler("threadcreate")))
		}
	}

	// WebSocket（实时事件与日志推送）
	r.GET("/ws", handleWebSocket)

	// API 路由，统一走 API Key 认证
	api := r.Group("/api")
	api.Use(authMiddleware())
	{
		api.GET("/status", getStatus)
		api.GET("/stats", getResearchStats)
		api.GET("/config", getConfig)

		// 策略与指标目录
		api.GET("/strategies", getStrategies)
		api.GET("/indicators", getIndicators)
		api.GET("/objectives", getObjectives)

		// 回测
		backtestAPI := api.Group("/backtest")
		{
			backtestAPI.POST("/run", runBacktest)
		}

		// 参数寻优（异步任务）
		optimizeAPI := api.Group("/optimize")
		{
			optimizeAPI.POST("", submitOptimization)
			optimizeAPI.GET("", listOptimizationJobs)
			optimizeAPI.GET("/:id", getOptimizationJob)
		}
		api.POST("/walkforward", submitWalkForward)

		// 历史记录
		runs := api.Group("/runs")
		{
			runs.GET("", listBacktestRuns)
			runs.GET("/:run_id", getBacktestRunDetail)
			runs.GET("/:run_id/trades", getBacktestRunTrades)
		}
		optimizations := api.Group("/optimizations")
		{
			optimizations.GET("", listOptimizationRuns)
			optimizations.GET("/:run_id", getOptimizationRunDetail)
		}

		// 行情数据
		api.GET("/klines", getKlines)
		api.POST("/data/import", importDataFile)

		// 事件中心
		registerEventRoutes(api)

		// 日志与系统监控
		api.GET("/logs", getLogs)
		api.GET("/logs/stats", getLogStats)
		api.GET("/system/metrics", getSystemMetrics)
		api.GET("/system/metrics/current", getCurrentSystemMetrics)
	}
}
