package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"quantforge/backtest"
	"quantforge/database"
	"quantforge/event"
	"quantforge/logger"
	"quantforge/metrics"
	"quantforge/optimizer"
	"quantforge/strategy"
)

const (
	// 每多少次评估发布一条进度事件
	sweepProgressEvery = 25
	// 内存里最多保留的任务数，超过后淘汰最早完成的
	maxRetainedJobs = 100
	// 任务内部拉取K线的超时
	jobFetchTimeout = 5 * time.Minute
	// 寻优槽位的锁键和最长等待时间
	sweepSlotKey  = "sweep"
	sweepSlotWait = 30 * time.Minute
)

// 任务状态
const (
	jobStatusRunning   = "running"
	jobStatusCompleted = "completed"
	jobStatusFailed    = "failed"
)

// sweepJob 一次异步寻优任务（普通网格扫描或滚动寻优）
type sweepJob struct {
	ID          string
	Kind        string // "optimize" / "walkforward"
	Strategy    string
	Symbol      string
	Interval    string
	SubmittedAt time.Time

	mu         sync.RWMutex
	status     string
	total      int
	done       int
	finishedAt time.Time
	errMsg     string
	result     *optimizer.Result
	windows    []optimizer.WindowResult
}

// SweepStarted 实现 optimizer.Observer
func (j *sweepJob) SweepStarted(strategyName string, total int) {
	j.mu.Lock()
	j.total = total
	j.mu.Unlock()
}

// EvaluationDone 实现 optimizer.Observer，被多个 worker 并发调用
func (j *sweepJob) EvaluationDone(index int, score float64, failed bool, elapsed time.Duration) {
	j.mu.Lock()
	j.done++
	j.mu.Unlock()
}

// SweepCompleted 实现 optimizer.Observer
func (j *sweepJob) SweepCompleted(result *optimizer.Result) {}

func (j *sweepJob) complete(result *optimizer.Result, windows []optimizer.WindowResult) {
	j.mu.Lock()
	j.status = jobStatusCompleted
	j.result = result
	j.windows = windows
	j.finishedAt = time.Now()
	j.mu.Unlock()
}

func (j *sweepJob) fail(err error) {
	j.mu.Lock()
	j.status = jobStatusFailed
	j.errMsg = err.Error()
	j.finishedAt = time.Now()
	j.mu.Unlock()
}

// summary 任务概要，列表页用
func (j *sweepJob) summary() gin.H {
	j.mu.RLock()
	defer j.mu.RUnlock()

	h := gin.H{
		"job_id":       j.ID,
		"kind":         j.Kind,
		"strategy":     j.Strategy,
		"symbol":       j.Symbol,
		"interval":     j.Interval,
		"status":       j.status,
		"submitted_at": j.SubmittedAt,
	}
	if j.total > 0 {
		h["total_combinations"] = j.total
		h["completed_combinations"] = j.done
		h["progress"] = float64(j.done) / float64(j.total)
	}
	if !j.finishedAt.IsZero() {
		h["finished_at"] = j.finishedAt
	}
	if j.errMsg != "" {
		h["error"] = j.errMsg
	}
	return h
}

// jobRegistry 内存任务注册表
type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*sweepJob
}

var sweepJobs = &jobRegistry{jobs: make(map[string]*sweepJob)}

func (r *jobRegistry) add(job *sweepJob) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job
	if len(r.jobs) <= maxRetainedJobs {
		return
	}

	// 淘汰最早完成的任务，运行中的不动
	var oldest *sweepJob
	for _, j := range r.jobs {
		j.mu.RLock()
		finished := j.status != jobStatusRunning
		j.mu.RUnlock()
		if !finished {
			continue
		}
		if oldest == nil || j.SubmittedAt.Before(oldest.SubmittedAt) {
			oldest = j
		}
	}
	if oldest != nil {
		delete(r.jobs, oldest.ID)
	}
}

func (r *jobRegistry) get(id string) (*sweepJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

func (r *jobRegistry) list() []*sweepJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*sweepJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].SubmittedAt.After(jobs[k].SubmittedAt)
	})
	return jobs
}

// OptimizeRequest 参数寻优请求
type OptimizeRequest struct {
	Strategy        string                              `json:"strategy" binding:"required"`
	Symbol          string                              `json:"symbol" binding:"required"`
	Interval        string                              `json:"interval" binding:"required"`
	StartTime       time.Time                           `json:"start_time" binding:"required"`
	EndTime         time.Time                           `json:"end_time" binding:"required"`
	Ranges          map[string]optimizer.ParameterRange `json:"ranges" binding:"required"`
	Objective       optimizer.Objective                 `json:"objective"`
	Workers         int                                 `json:"workers"`
	MaxCombinations int                                 `json:"max_combinations"`
	DeadlineSeconds int                                 `json:"deadline_seconds"`
	Cost            *backtest.CostConfig                `json:"cost"`
}

// WalkForwardRequest 滚动寻优请求，在寻优请求上加窗口划分
type WalkForwardRequest struct {
	OptimizeRequest
	TrainBars int `json:"train_bars" binding:"required"`
	TestBars  int `json:"test_bars" binding:"required"`
	StepBars  int `json:"step_bars" binding:"required"`
}

// buildSweepRequest 校验请求并换算成 optimizer.Request，默认值取自当前配置
func buildSweepRequest(req *OptimizeRequest) (optimizer.Request, error) {
	if !req.EndTime.After(req.StartTime) {
		return optimizer.Request{}, fmt.Errorf("结束时间必须晚于开始时间")
	}
	if len(req.Ranges) == 0 {
		return optimizer.Request{}, fmt.Errorf("参数范围不能为空")
	}
	if _, err := strategy.FromParams(req.Strategy, nil); err != nil {
		return optimizer.Request{}, err
	}

	objective := req.Objective
	workers := req.Workers
	maxCombos := req.MaxCombinations
	cost := backtest.DefaultCostConfig()
	if configReloader != nil {
		cfg := configReloader.GetCurrentConfig()
		cost = cfg.Engine.Cost
		if objective == "" {
			objective = cfg.Optimizer.Objective
		}
		if workers <= 0 {
			workers = cfg.Optimizer.Workers
		}
		if maxCombos <= 0 {
			maxCombos = cfg.Optimizer.MaxCombinations
		}
	}
	if objective == "" {
		objective = optimizer.ObjectiveSharpe
	}
	valid := false
	for _, o := range optimizer.Objectives() {
		if o == objective {
			valid = true
			break
		}
	}
	if !valid {
		return optimizer.Request{}, fmt.Errorf("不支持的寻优目标: %s", objective)
	}
	if req.Cost != nil {
		cost = *req.Cost
	}
	if err := cost.Validate(); err != nil {
		return optimizer.Request{}, err
	}

	out := optimizer.Request{
		Strategy:        req.Strategy,
		Ranges:          req.Ranges,
		Objective:       objective,
		Cost:            cost,
		Workers:         workers,
		MaxCombinations: maxCombos,
		Deadline:        time.Duration(req.DeadlineSeconds) * time.Second,
	}
	// 注入指标缓存，重复扫描同一段行情时跳过算过的组合
	if scoreCache != nil {
		out.Cache = scoreCache
		out.CacheDataset = req.Symbol + ":" + req.Interval
		out.CacheTTL = scoreCacheTTL
	}
	return out, nil
}

// submitOptimization 提交参数寻优任务
// POST /api/optimize
func submitOptimization(c *gin.Context) {
	var req OptimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("请求参数错误: %v", err)})
		return
	}

	sweepReq, err := buildSweepRequest(&req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if dataManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "数据管理器未注入"})
		return
	}

	job := &sweepJob{
		ID:          uuid.NewString(),
		Kind:        "optimize",
		Strategy:    req.Strategy,
		Symbol:      req.Symbol,
		Interval:    req.Interval,
		SubmittedAt: time.Now(),
		status:      jobStatusRunning,
	}
	sweepJobs.add(job)

	go executeOptimizeJob(job, &req, sweepReq)

	logger.Info("🎯 寻优任务已提交: %s (%s %s %s)", job.ID, req.Strategy, req.Symbol, req.Interval)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "寻优任务已提交",
		"job_id":  job.ID,
	})
}

// submitWalkForward 提交滚动寻优任务
// POST /api/walkforward
func submitWalkForward(c *gin.Context) {
	var req WalkForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": fmt.Sprintf("请求参数错误: %v", err)})
		return
	}

	sweepReq, err := buildSweepRequest(&req.OptimizeRequest)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	wfCfg := optimizer.WalkForwardConfig{
		TrainBars: req.TrainBars,
		TestBars:  req.TestBars,
		StepBars:  req.StepBars,
	}
	if err := wfCfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}
	if dataManager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "数据管理器未注入"})
		return
	}

	job := &sweepJob{
		ID:          uuid.NewString(),
		Kind:        "walkforward",
		Strategy:    req.Strategy,
		Symbol:      req.Symbol,
		Interval:    req.Interval,
		SubmittedAt: time.Now(),
		status:      jobStatusRunning,
	}
	sweepJobs.add(job)

	go executeWalkForwardJob(job, &req, sweepReq, wfCfg)

	logger.Info("🎯 滚动寻优任务已提交: %s (%s %s %s)", job.ID, req.Strategy, req.Symbol, req.Interval)
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "滚动寻优任务已提交",
		"job_id":  job.ID,
	})
}

// acquireSweepSlot 占用寻优槽位。多实例共用 Redis 时同一时刻
// 只有一个实例能跑重计算任务，单实例模式下 NopLock 直接放行。
// 返回的 release 停止续期并释放锁。
func acquireSweepSlot(jobID string) (release func(), err error) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepSlotWait)
	defer cancel()

	if err := sweepLock.Lock(ctx, sweepSlotKey, sweepLockTTL); err != nil {
		return nil, fmt.Errorf("等待寻优槽位超时: %w", err)
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(sweepLockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-renewCtx.Done():
				return
			case <-ticker.C:
				if err := sweepLock.Extend(renewCtx, sweepSlotKey, sweepLockTTL); err != nil {
					logger.Warn("⚠️ 任务 %s 续期寻优锁失败: %v", jobID, err)
					return
				}
			}
		}
	}()

	return func() {
		stopRenew()
		unlockCtx, unlockCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer unlockCancel()
		if err := sweepLock.Unlock(unlockCtx, sweepSlotKey); err != nil {
			logger.Warn("⚠️ 任务 %s 释放寻优锁失败: %v", jobID, err)
		}
	}, nil
}

// executeOptimizeJob 在后台执行寻优并落库
func executeOptimizeJob(job *sweepJob, req *OptimizeRequest, sweepReq optimizer.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), jobFetchTimeout)
	candles, err := dataManager.GetCandles(ctx, req.Symbol, req.Interval, req.StartTime.UnixMilli(), req.EndTime.UnixMilli())
	cancel()
	if err != nil {
		logger.Error("❌ 寻优任务 %s 获取数据失败: %v", job.ID, err)
		job.fail(err)
		return
	}

	release, err := acquireSweepSlot(job.ID)
	if err != nil {
		logger.Error("❌ 寻优任务 %s 未能占用槽位: %v", job.ID, err)
		job.fail(err)
		return
	}
	defer release()

	sweepReq.Observers = []optimizer.Observer{job, metrics.NewSweepRecorder(string(sweepReq.Objective))}
	if eventBus != nil {
		sweepReq.Observers = append(sweepReq.Observers, event.NewSweepPublisher(eventBus, sweepProgressEvery))
	}

	result, err := optimizer.Optimize(candles, sweepReq)
	if err != nil {
		logger.Error("❌ 寻优任务 %s 失败: %v", job.ID, err)
		job.fail(err)
		return
	}

	if statsCollector != nil {
		statsCollector.RecordSweepRun(result.Strategy, result.BestScore, result.ElapsedMs, result.CompletedCombinations)
	}
	if err := persistOptimizationRun(job.ID, req, result); err != nil {
		logger.Warn("⚠️ 寻优记录落库失败: %v", err)
	}

	job.complete(result, nil)
}

// executeWalkForwardJob 在后台执行滚动寻优
func executeWalkForwardJob(job *sweepJob, req *WalkForwardRequest, sweepReq optimizer.Request, wfCfg optimizer.WalkForwardConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), jobFetchTimeout)
	candles, err := dataManager.GetCandles(ctx, req.Symbol, req.Interval, req.StartTime.UnixMilli(), req.EndTime.UnixMilli())
	cancel()
	if err != nil {
		logger.Error("❌ 滚动寻优任务 %s 获取数据失败: %v", job.ID, err)
		job.fail(err)
		return
	}

	release, err := acquireSweepSlot(job.ID)
	if err != nil {
		logger.Error("❌ 滚动寻优任务 %s 未能占用槽位: %v", job.ID, err)
		job.fail(err)
		return
	}
	defer release()

	begin := time.Now()
	windows, err := optimizer.WalkForward(candles, sweepReq, wfCfg)
	if err != nil {
		logger.Error("❌ 滚动寻优任务 %s 失败: %v", job.ID, err)
		job.fail(err)
		return
	}

	if eventBus != nil {
		positive := 0
		for _, w := range windows {
			if w.TestErr == "" && w.TestScore > 0 {
				positive++
			}
		}
		eventBus.Publish(&event.Event{
			Type:      event.EventTypeWalkForwardCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"job_id":           job.ID,
				"symbol":           req.Symbol,
				"strategy":         req.Strategy,
				"windows":          len(windows),
				"positive_windows": positive,
				"elapsed_ms":       float64(time.Since(begin).Milliseconds()),
			},
		})
	}

	job.complete(nil, windows)
}

// persistOptimizationRun 把寻优结果写进数据库，排名靠前的评估记录存 JSON 列
func persistOptimizationRun(jobID string, req *OptimizeRequest, result *optimizer.Result) error {
	if db == nil {
		return nil
	}

	bestParamsJSON, err := json.Marshal(result.BestParams)
	if err != nil {
		return err
	}
	top, err := result.TopK(result.Objective, 20)
	if err != nil {
		top = nil
	}
	resultsJSON, err := json.Marshal(top)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return db.SaveOptimizationRun(ctx, &database.OptimizationRun{
		RunID:                 jobID,
		Symbol:                req.Symbol,
		Strategy:              result.Strategy,
		Objective:             string(result.Objective),
		TotalCombinations:     result.TotalCombinations,
		CompletedCombinations: result.CompletedCombinations,
		BestScore:             database.Finite(result.BestScore),
		BestParamsJSON:        string(bestParamsJSON),
		ResultsJSON:           string(resultsJSON),
		Truncated:             result.Truncated,
		Workers:               result.Workers,
		ParallelEfficiency:    result.ParallelEfficiency,
		ElapsedMs:             result.ElapsedMs,
	})
}

// getOptimizationJob 查询任务状态和结果
// GET /api/optimize/:id
func getOptimizationJob(c *gin.Context) {
	job, ok := sweepJobs.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}

	resp := job.summary()

	job.mu.RLock()
	result := job.result
	windows := job.windows
	job.mu.RUnlock()

	if result != nil {
		top, _ := strconv.Atoi(c.DefaultQuery("top", "20"))
		trimmed := *result
		if top > 0 && len(trimmed.Results) > top {
			trimmed.Results = trimmed.Results[:top]
		}
		resp["result"] = &trimmed
	}
	if windows != nil {
		resp["windows"] = windows
	}

	c.JSON(http.StatusOK, resp)
}

// listOptimizationJobs 列出内存中的任务
// GET /api/optimize
func listOptimizationJobs(c *gin.Context) {
	jobs := sweepJobs.list()
	summaries := make([]gin.H, len(jobs))
	for i, job := range jobs {
		summaries[i] = job.summary()
	}
	c.JSON(http.StatusOK, gin.H{"jobs": summaries, "count": len(summaries)})
}
