package event

import (
	"math"
	"sync/atomic"
	"time"

	"quantforge/optimizer"
)

// SweepPublisher 把寻优进度转成事件发到总线上。
// EvaluationDone 由多个 worker 并发调用，这里只做原子计数，
// 每完成 every 个组合发布一条进度事件。
type SweepPublisher struct {
	bus       *EventBus
	every     int64
	strategy  atomic.Value // string
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

var _ optimizer.Observer = (*SweepPublisher)(nil)

// NewSweepPublisher 创建进度发布器，every <= 0 时每 10 个组合发一条
func NewSweepPublisher(bus *EventBus, every int) *SweepPublisher {
	if every <= 0 {
		every = 10
	}
	return &SweepPublisher{bus: bus, every: int64(every)}
}

// SweepStarted 扫描开始
func (p *SweepPublisher) SweepStarted(strategy string, total int) {
	p.strategy.Store(strategy)
	p.total.Store(int64(total))
	p.completed.Store(0)
	p.failed.Store(0)

	p.bus.Publish(&Event{
		Type: EventTypeOptimizationStarted,
		Data: map[string]interface{}{
			"strategy": strategy,
			"total":    total,
		},
	})
}

// EvaluationDone 单个组合完成
func (p *SweepPublisher) EvaluationDone(index int, score float64, failed bool, elapsed time.Duration) {
	if failed {
		p.failed.Add(1)
	}
	n := p.completed.Add(1)
	total := p.total.Load()
	if n%p.every != 0 && n != total {
		return
	}

	strategy, _ := p.strategy.Load().(string)
	data := map[string]interface{}{
		"strategy":  strategy,
		"completed": n,
		"total":     total,
		"failed":    p.failed.Load(),
	}
	if total > 0 {
		data["percent"] = float64(n) / float64(total) * 100
	}
	p.bus.Publish(&Event{Type: EventTypeOptimizationProgress, Data: data})
}

// SweepCompleted 扫描结束，携带最优结果摘要
func (p *SweepPublisher) SweepCompleted(result *optimizer.Result) {
	data := map[string]interface{}{
		"strategy":   result.Strategy,
		"objective":  string(result.Objective),
		"completed":  result.CompletedCombinations,
		"total":      result.TotalCombinations,
		"truncated":  result.Truncated,
		"elapsed_ms": result.ElapsedMs,
	}
	// JSON 序列化不接受非有限值
	if !math.IsInf(result.BestScore, 0) && !math.IsNaN(result.BestScore) {
		data["best_score"] = result.BestScore
		data["best_parameters"] = result.BestParams
	}
	p.bus.Publish(&Event{Type: EventTypeOptimizationCompleted, Data: data})
}
