package metrics

import (
	"math"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once
	// 回测指标
	backtestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantforge_backtest_total",
			Help: "Total number of backtests executed",
		},
		[]string{"strategy", "status"},
	)

	backtestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantforge_backtest_duration_seconds",
			Help:    "Backtest execution duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"strategy"},
	)

	// 寻优指标
	sweepTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantforge_sweep_total",
			Help: "Total number of parameter sweeps",
		},
		[]string{"strategy", "objective"},
	)

	evaluationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantforge_evaluation_total",
			Help: "Total number of parameter evaluations",
		},
		[]string{"strategy", "status"},
	)

	evaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantforge_evaluation_duration_seconds",
			Help:    "Single evaluation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"strategy"},
	)

	sweepBestScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quantforge_sweep_best_score",
			Help: "Best score of the most recent sweep",
		},
		[]string{"strategy", "objective"},
	)

	sweepProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quantforge_sweep_progress_ratio",
			Help: "Progress of the running sweep (0-1)",
		},
		[]string{"strategy"},
	)

	sweepWorkers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quantforge_sweep_workers",
			Help: "Worker count of the most recent sweep",
		},
		[]string{"strategy"},
	)

	// 行情数据指标
	dataFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantforge_data_fetch_total",
			Help: "Total number of candle fetch operations",
		},
		[]string{"source", "status"},
	)

	dataFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantforge_data_fetch_duration_seconds",
			Help:    "Candle fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"source"},
	)

	cacheHitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantforge_cache_hit_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	cacheMissTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantforge_cache_miss_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Web 服务指标
	httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantforge_http_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"method", "path"},
	)

	websocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantforge_websocket_clients",
			Help: "Number of connected WebSocket clients",
		},
	)

	// 系统指标
	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantforge_goroutine_count",
			Help: "Number of goroutines",
		},
	)

	memoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantforge_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	gcPauseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quantforge_gc_pause_duration_seconds",
			Help:    "GC pause duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	processCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantforge_process_cpu_percent",
			Help: "Process CPU usage percent",
		},
	)

	processMemoryPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantforge_process_memory_percent",
			Help: "System memory usage percent",
		},
	)
)

// PrometheusMetrics Prometheus 指标收集器
type PrometheusMetrics struct{}

// NewPrometheusMetrics 创建 Prometheus 指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// 回测相关指标记录

// RecordBacktest 记录回测
func (pm *PrometheusMetrics) RecordBacktest(strategy, status string, duration time.Duration) {
	backtestTotal.WithLabelValues(strategy, status).Inc()
	backtestDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// 寻优相关指标记录

// RecordSweep 记录参数扫描
func (pm *PrometheusMetrics) RecordSweep(strategy, objective string) {
	sweepTotal.WithLabelValues(strategy, objective).Inc()
}

// RecordEvaluation 记录单个参数组合的评估
func (pm *PrometheusMetrics) RecordEvaluation(strategy string, failed bool, duration time.Duration) {
	status := "success"
	if failed {
		status = "failed"
	}
	evaluationTotal.WithLabelValues(strategy, status).Inc()
	evaluationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// SetSweepBestScore 设置最近一次扫描的最优得分，非有限值跳过
func (pm *PrometheusMetrics) SetSweepBestScore(strategy, objective string, score float64) {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return
	}
	sweepBestScore.WithLabelValues(strategy, objective).Set(score)
}

// SetSweepProgress 设置扫描进度 (0-1)
func (pm *PrometheusMetrics) SetSweepProgress(strategy string, ratio float64) {
	sweepProgress.WithLabelValues(strategy).Set(ratio)
}

// SetSweepWorkers 设置扫描并发度
func (pm *PrometheusMetrics) SetSweepWorkers(strategy string, workers int) {
	sweepWorkers.WithLabelValues(strategy).Set(float64(workers))
}

// 行情数据相关指标记录

// RecordDataFetch 记录行情拉取
func (pm *PrometheusMetrics) RecordDataFetch(source, status string, duration time.Duration) {
	dataFetchTotal.WithLabelValues(source, status).Inc()
	dataFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCacheHit 记录缓存命中
func (pm *PrometheusMetrics) RecordCacheHit(cache string) {
	cacheHitTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (pm *PrometheusMetrics) RecordCacheMiss(cache string) {
	cacheMissTotal.WithLabelValues(cache).Inc()
}

// Web 服务相关指标记录

// RecordHTTPRequest 记录 HTTP 请求
func (pm *PrometheusMetrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetWebSocketClients 设置 WebSocket 客户端数量
func (pm *PrometheusMetrics) SetWebSocketClients(count int) {
	websocketClients.Set(float64(count))
}

// 系统相关指标记录

// SetGoroutineCount 设置 Goroutine 数量
func (pm *PrometheusMetrics) SetGoroutineCount(count int) {
	goroutineCount.Set(float64(count))
}

// SetMemoryAlloc 设置内存分配
func (pm *PrometheusMetrics) SetMemoryAlloc(bytes uint64) {
	memoryAllocBytes.Set(float64(bytes))
}

// RecordGCPause 记录 GC 停顿时间
func (pm *PrometheusMetrics) RecordGCPause(duration time.Duration) {
	gcPauseDuration.Observe(duration.Seconds())
}

// SetProcessCPUPercent 设置进程 CPU 占用
func (pm *PrometheusMetrics) SetProcessCPUPercent(percent float64) {
	processCPUPercent.Set(percent)
}

// SetProcessMemoryPercent 设置内存占用
func (pm *PrometheusMetrics) SetProcessMemoryPercent(percent float64) {
	processMemoryPercent.Set(percent)
}

// 全局实例
var globalPrometheusMetrics *PrometheusMetrics

// GetPrometheusMetrics 获取全局 Prometheus 指标收集器
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		globalPrometheusMetrics = NewPrometheusMetrics()
	})
	return globalPrometheusMetrics
}
