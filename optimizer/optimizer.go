// Package optimizer 在参数网格上并行执行回测扫描并按目标函数排名。
// 评分是纯函数，同样的输入在任意并发度下得到同样的最优解。
package optimizer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"quantforge/backtest"
	"quantforge/cache"
	"quantforge/indicators"
	"quantforge/logger"
	"quantforge/monitor"
	"quantforge/strategy"
)

// 单次缓存读写的超时，缓存不可用时不能拖慢扫描
const cacheOpTimeout = time.Second

// Objective 寻优目标函数
type Objective string

const (
	ObjectiveSharpe      Objective = "sharpe_ratio"
	ObjectiveTotalReturn Objective = "total_return"
	ObjectiveCalmar      Objective = "calmar_ratio"
	ObjectiveSortino     Objective = "sortino_ratio"
)

// Objectives 返回全部支持的目标函数
func Objectives() []Objective {
	return []Objective{ObjectiveSharpe, ObjectiveTotalReturn, ObjectiveCalmar, ObjectiveSortino}
}

func (o Objective) valid() bool {
	switch o {
	case ObjectiveSharpe, ObjectiveTotalReturn, ObjectiveCalmar, ObjectiveSortino:
		return true
	}
	return false
}

// scoreFor 从已算好的指标里取目标得分，NaN 一律压成 -Inf 保证可排序
func scoreFor(o Objective, m backtest.Metrics) float64 {
	var score float64
	switch o {
	case ObjectiveTotalReturn:
		score = m.TotalReturn
	case ObjectiveCalmar:
		score = m.CalmarRatio
	case ObjectiveSortino:
		score = m.SortinoRatio
	default:
		score = m.SharpeRatio
	}
	if math.IsNaN(score) {
		return math.Inf(-1)
	}
	return score
}

// Observer 接收扫描进度回调。EvaluationDone 会被多个 worker
// 并发调用，实现必须自己保证并发安全。
type Observer interface {
	SweepStarted(strategy string, total int)
	EvaluationDone(index int, score float64, failed bool, elapsed time.Duration)
	SweepCompleted(result *Result)
}

// Request 一次参数寻优请求
type Request struct {
	Strategy        string                    `json:"strategy" yaml:"strategy"`
	Ranges          map[string]ParameterRange `json:"ranges" yaml:"ranges"`
	Objective       Objective                 `json:"objective" yaml:"objective"`
	Cost            backtest.CostConfig       `json:"cost" yaml:"cost"`
	Workers         int                       `json:"workers" yaml:"workers"`                   // <=0 取硬件并行度
	BatchSize       int                       `json:"batch_size" yaml:"batch_size"`             // 每个 worker 一次领取的组合数
	MaxCombinations int                       `json:"max_combinations" yaml:"max_combinations"` // <=0 取默认上限
	Deadline        time.Duration             `json:"deadline" yaml:"deadline"`                 // 0 表示不限时
	Observers       []Observer                `json:"-" yaml:"-"`

	// 指标缓存（可选）。两者都设置时每个组合先查缓存，命中跳过回测。
	// CacheDataset 只标识行情来源（如 "BTCUSDT:1h"），实际键里还会
	// 拼上本次扫描所用切片的时间范围，滚动寻优的各窗口互不串key。
	Cache        cache.ScoreCache `json:"-" yaml:"-"`
	CacheDataset string           `json:"-" yaml:"-"`
	CacheTTL     time.Duration    `json:"-" yaml:"-"`
}

// Evaluation 单个参数组合的评估记录
type Evaluation struct {
	Index     int                `json:"index"`
	Params    map[string]float64 `json:"parameters"`
	Score     float64            `json:"score"`
	Metrics   backtest.Metrics   `json:"metrics"`
	Err       string             `json:"error,omitempty"`
	ElapsedMs float64            `json:"elapsed_ms"`
}

// MarshalJSON 评估失败时得分是 -Inf，序列化成 null
func (e Evaluation) MarshalJSON() ([]byte, error) {
	type alias Evaluation
	return json.Marshal(struct {
		alias
		Score interface{} `json:"score"`
	}{
		alias: alias(e),
		Score: backtest.FiniteOrNil(e.Score),
	})
}

// Result 参数寻优结果，Results 按得分降序排列
type Result struct {
	Strategy              string             `json:"strategy"`
	Objective             Objective          `json:"objective"`
	BestParams            map[string]float64 `json:"best_parameters"`
	BestScore             float64            `json:"best_score"`
	BestMetrics           backtest.Metrics   `json:"best_metrics"`
	Results               []Evaluation       `json:"scored_parameters"`
	TotalCombinations     int                `json:"total_combinations"`
	CompletedCombinations int                `json:"completed_combinations"`
	ElapsedMs             float64            `json:"elapsed_ms"`
	ParallelEfficiency    float64            `json:"parallel_efficiency"`
	Truncated             bool               `json:"truncated"`
	Workers               int                `json:"workers"`
}

// MarshalJSON 全部组合都失败时最优得分是 -Inf，序列化成 null
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(struct {
		alias
		BestScore interface{} `json:"best_score"`
	}{
		alias:     alias(r),
		BestScore: backtest.FiniteOrNil(r.BestScore),
	})
}

type span struct{ start, end int }

// Optimize 在参数网格上执行回测扫描。
// 每个组合独立评估，单个组合失败记为 -Inf 得分而不中断扫描。
// 设了 Deadline 时到点后不再启动新评估，已开始的照常跑完，
// 结果置 Truncated 并报告完成数量，不返回错误。
func Optimize(candles []indicators.Candle, req Request) (*Result, error) {
	if !req.Objective.valid() {
		return nil, &backtest.ValidationError{Field: "objective", Reason: "不支持的目标函数 " + string(req.Objective)}
	}
	if _, err := strategy.FromParams(req.Strategy, nil); err != nil {
		return nil, err
	}
	if req.Cost == (backtest.CostConfig{}) {
		req.Cost = backtest.DefaultCostConfig()
	}
	if err := req.Cost.Validate(); err != nil {
		return nil, err
	}
	if err := backtest.ValidateCandles(candles); err != nil {
		return nil, err
	}

	grid, err := GenerateCombinations(req.Ranges, req.MaxCombinations)
	if err != nil {
		return nil, err
	}
	n := len(grid.Tuples)

	workers := req.Workers
	if workers <= 0 {
		workers = monitor.DetectParallelism()
	}
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	batch := req.BatchSize
	if batch <= 0 {
		batch = 1
	}

	logger.Info("🎯 开始参数寻优: 策略=%s 目标=%s 组合数=%d 并发=%d", req.Strategy, req.Objective, n, workers)
	for _, ob := range req.Observers {
		ob.SweepStarted(req.Strategy, n)
	}

	var deadlineAt time.Time
	start := time.Now()
	if req.Deadline > 0 {
		deadlineAt = start.Add(req.Deadline)
	}

	// 缓存键里的数据集指纹带上切片的时间范围，重复扫描同一段行情才会命中
	dataset := ""
	if req.Cache != nil && req.CacheDataset != "" {
		dataset = fmt.Sprintf("%s:%d-%d", req.CacheDataset, candles[0].Time, candles[len(candles)-1].Time)
	}
	var cacheHits atomic.Int64

	// 结果写入各自下标的槽位，worker 之间零争用
	slots := make([]Evaluation, n)
	done := make([]bool, n)
	durations := make([]time.Duration, n)

	jobs := make(chan span, (n+batch-1)/batch)
	for s := 0; s < n; s += batch {
		end := s + batch
		if end > n {
			end = n
		}
		jobs <- span{start: s, end: end}
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sp := range jobs {
				for idx := sp.start; idx < sp.end; idx++ {
					if !deadlineAt.IsZero() && !time.Now().Before(deadlineAt) {
						continue
					}
					t0 := time.Now()
					ev := evaluateTuple(candles, req, dataset, idx, grid.Tuples[idx], &cacheHits)
					d := time.Since(t0)
					ev.ElapsedMs = d.Seconds() * 1e3
					slots[idx] = ev
					done[idx] = true
					durations[idx] = d
					for _, ob := range req.Observers {
						ob.EvaluationDone(idx, ev.Score, ev.Err != "", d)
					}
				}
			}
		}()
	}
	wg.Wait()
	wall := time.Since(start)
	if hits := cacheHits.Load(); hits > 0 {
		logger.Info("📦 指标缓存命中 %d/%d 个组合", hits, n)
	}

	completed := make([]Evaluation, 0, n)
	var busy time.Duration
	for i := 0; i < n; i++ {
		if done[i] {
			completed = append(completed, slots[i])
			busy += durations[i]
		}
	}
	sortEvaluations(completed)

	deadlineHit := len(completed) < n
	if deadlineHit {
		logger.Warn("⏳ 寻优时限已到: 完成 %d/%d 个组合", len(completed), n)
	}

	result := &Result{
		Strategy:              req.Strategy,
		Objective:             req.Objective,
		BestScore:             math.Inf(-1),
		Results:               completed,
		TotalCombinations:     grid.Total,
		CompletedCombinations: len(completed),
		ElapsedMs:             wall.Seconds() * 1e3,
		Truncated:             grid.Truncated || deadlineHit,
		Workers:               workers,
	}
	if wall > 0 {
		result.ParallelEfficiency = busy.Seconds() / wall.Seconds()
	}
	if len(completed) > 0 {
		result.BestParams = completed[0].Params
		result.BestScore = completed[0].Score
		result.BestMetrics = completed[0].Metrics
	}

	logger.Info("✅ 参数寻优完成: 最优得分=%.4f 完成=%d/%d 用时=%.0fms 并行效率=%.2fx",
		result.BestScore, result.CompletedCombinations, n, result.ElapsedMs, result.ParallelEfficiency)
	for _, ob := range req.Observers {
		ob.SweepCompleted(result)
	}
	return result, nil
}

// evaluateTuple 评估单个参数组合，任何失败都转成 -Inf 得分的记录。
// dataset 非空时先查指标缓存，命中直接复用指标，未命中算完回填。
// 缓存里只有成功跑完的组合，非法参数每次都会重新失败，结果不受缓存影响。
func evaluateTuple(candles []indicators.Candle, req Request, dataset string, idx int, tuple map[string]float64, cacheHits *atomic.Int64) Evaluation {
	ev := Evaluation{Index: idx, Params: tuple, Score: math.Inf(-1)}

	variant, err := strategy.FromParams(req.Strategy, tuple)
	if err != nil {
		ev.Err = err.Error()
		return ev
	}

	key := ""
	if dataset != "" {
		key = cache.BuildKey(dataset, req.Strategy, tuple, req.Cost)
		ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
		cached, ok, cerr := req.Cache.GetMetrics(ctx, key)
		cancel()
		if cerr == nil && ok {
			cacheHits.Add(1)
			ev.Metrics = *cached
			ev.Score = scoreFor(req.Objective, *cached)
			return ev
		}
	}

	res, err := strategy.RunStrategyBacktest(candles, variant, req.Cost)
	if err != nil {
		ev.Err = err.Error()
		return ev
	}
	ev.Metrics = res.Metrics
	ev.Score = scoreFor(req.Objective, res.Metrics)

	if key != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
		if err := req.Cache.SetMetrics(ctx, key, &res.Metrics, req.CacheTTL); err != nil {
			logger.Debug("指标缓存写入失败: %v", err)
		}
		cancel()
	}
	return ev
}

// sortEvaluations 得分降序，同分按枚举下标升序，排序结果与并发度无关
func sortEvaluations(evals []Evaluation) {
	sort.Slice(evals, func(i, j int) bool {
		if evals[i].Score != evals[j].Score {
			return evals[i].Score > evals[j].Score
		}
		return evals[i].Index < evals[j].Index
	})
}

// TopK 按指定目标对已记录的指标重新排名，取前 k 个，不重跑回测。
// k 不在 (0, len] 内时返回全部。失败的组合保持 -Inf 不参与重评分。
func (r *Result) TopK(objective Objective, k int) ([]Evaluation, error) {
	if !objective.valid() {
		return nil, &backtest.ValidationError{Field: "objective", Reason: "不支持的目标函数 " + string(objective)}
	}
	ranked := make([]Evaluation, len(r.Results))
	copy(ranked, r.Results)
	for i := range ranked {
		if ranked[i].Err != "" {
			ranked[i].Score = math.Inf(-1)
			continue
		}
		ranked[i].Score = scoreFor(objective, ranked[i].Metrics)
	}
	sortEvaluations(ranked)
	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked, nil
}
