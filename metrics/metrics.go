package metrics

import (
	"math"
	"sync"
	"time"
)

// ResearchStats 面板用的运行统计快照
type ResearchStats struct {
	TotalBacktests   int                `json:"total_backtests"`
	TotalSweeps      int                `json:"total_sweeps"`
	TotalEvaluations int                `json:"total_evaluations"`
	LastBacktestMs   float64            `json:"last_backtest_ms"`
	LastSweepMs      float64            `json:"last_sweep_ms"`
	BestScores       map[string]float64 `json:"best_scores"` // 策略名 -> 最近最优得分
	LastUpdate       time.Time          `json:"last_update"`
}

// StatsCollector 进程内统计收集器，给 /api/stats 用
type StatsCollector struct {
	mu    sync.RWMutex
	stats ResearchStats
}

// NewStatsCollector 创建统计收集器
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		stats: ResearchStats{
			BestScores: make(map[string]float64),
			LastUpdate: time.Now(),
		},
	}
}

// RecordBacktestRun 记录一次回测
func (sc *StatsCollector) RecordBacktestRun(elapsedMs float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats.TotalBacktests++
	sc.stats.LastBacktestMs = elapsedMs
	sc.stats.LastUpdate = time.Now()
}

// RecordSweepRun 记录一次参数扫描。
// 非有限的最优得分（全部组合失败时是 -Inf）不进入快照，
// 快照要能直接 JSON 序列化。
func (sc *StatsCollector) RecordSweepRun(strategy string, bestScore float64, elapsedMs float64, evaluations int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats.TotalSweeps++
	sc.stats.TotalEvaluations += evaluations
	sc.stats.LastSweepMs = elapsedMs
	if !math.IsNaN(bestScore) && !math.IsInf(bestScore, 0) {
		sc.stats.BestScores[strategy] = bestScore
	}
	sc.stats.LastUpdate = time.Now()
}

// Snapshot 返回统计快照的拷贝
func (sc *StatsCollector) Snapshot() ResearchStats {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	snapshot := sc.stats
	snapshot.BestScores = make(map[string]float64, len(sc.stats.BestScores))
	for k, v := range sc.stats.BestScores {
		snapshot.BestScores[k] = v
	}
	return snapshot
}
