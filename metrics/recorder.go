package metrics

import (
	"sync/atomic"
	"time"

	"quantforge/optimizer"
)

// SweepRecorder 把寻优进度写进 Prometheus 指标。
// 一次扫描用一个实例：strategy 在 SweepStarted 里写入，
// worker 只读，计数全部走原子操作。
type SweepRecorder struct {
	pm        *PrometheusMetrics
	strategy  string
	objective string
	total     int64
	completed atomic.Int64
}

var _ optimizer.Observer = (*SweepRecorder)(nil)

// NewSweepRecorder 创建指标记录器
func NewSweepRecorder(objective string) *SweepRecorder {
	return &SweepRecorder{
		pm:        GetPrometheusMetrics(),
		objective: objective,
	}
}

// SweepStarted 扫描开始
func (r *SweepRecorder) SweepStarted(strategy string, total int) {
	r.strategy = strategy
	r.total = int64(total)
	r.completed.Store(0)
	r.pm.RecordSweep(strategy, r.objective)
	r.pm.SetSweepProgress(strategy, 0)
}

// EvaluationDone 单个组合完成
func (r *SweepRecorder) EvaluationDone(index int, score float64, failed bool, elapsed time.Duration) {
	r.pm.RecordEvaluation(r.strategy, failed, elapsed)
	n := r.completed.Add(1)
	if r.total > 0 {
		r.pm.SetSweepProgress(r.strategy, float64(n)/float64(r.total))
	}
}

// SweepCompleted 扫描结束
func (r *SweepRecorder) SweepCompleted(result *optimizer.Result) {
	r.pm.SetSweepBestScore(result.Strategy, string(result.Objective), result.BestScore)
	r.pm.SetSweepWorkers(result.Strategy, result.Workers)
	r.pm.SetSweepProgress(result.Strategy, 1)
}
