package metrics

import (
	"math"
	"testing"
	"time"

	"quantforge/optimizer"
)

func TestStatsCollector(t *testing.T) {
	t.Log("测试运行统计收集器")

	sc := NewStatsCollector()
	sc.RecordBacktestRun(12.5)
	sc.RecordSweepRun("ma_cross", 1.8, 350, 9)
	sc.RecordSweepRun("rsi", 0.9, 120, 4)

	snap := sc.Snapshot()
	if snap.TotalBacktests != 1 || snap.TotalSweeps != 2 || snap.TotalEvaluations != 13 {
		t.Errorf("计数错误: %+v", snap)
	}
	if snap.LastBacktestMs != 12.5 || snap.LastSweepMs != 120 {
		t.Errorf("耗时记录错误: %+v", snap)
	}
	if snap.BestScores["ma_cross"] != 1.8 || snap.BestScores["rsi"] != 0.9 {
		t.Errorf("最优得分记录错误: %v", snap.BestScores)
	}

	// 快照与内部状态隔离
	snap.BestScores["ma_cross"] = -1
	if sc.Snapshot().BestScores["ma_cross"] != 1.8 {
		t.Error("快照应是拷贝")
	}

	t.Log("✅ 统计收集器测试通过")
}

func TestSweepRecorderProgress(t *testing.T) {
	t.Log("测试寻优指标记录器的进度计数")

	rec := NewSweepRecorder("sharpe_ratio")
	rec.SweepStarted("ma_cross", 4)
	for i := 0; i < 4; i++ {
		rec.EvaluationDone(i, 1.0, i%2 == 1, time.Millisecond)
	}
	if got := rec.completed.Load(); got != 4 {
		t.Errorf("完成计数应为 4, 实际 %d", got)
	}

	// 非有限得分不应写入 best score 指标
	rec.SweepCompleted(&optimizer.Result{
		Strategy:  "ma_cross",
		Objective: "sharpe_ratio",
		BestScore: math.Inf(-1),
		Workers:   2,
	})

	t.Log("✅ 指标记录器测试通过")
}
