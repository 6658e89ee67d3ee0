package optimizer

import (
	"encoding/json"
	"math"

	"quantforge/backtest"
	"quantforge/indicators"
	"quantforge/logger"
	"quantforge/strategy"
)

// WalkForwardConfig 滚动寻优的窗口划分，全部按 K 线根数计
type WalkForwardConfig struct {
	TrainBars int `json:"train_bars" yaml:"train_bars"`
	TestBars  int `json:"test_bars" yaml:"test_bars"`
	StepBars  int `json:"step_bars" yaml:"step_bars"`
}

// Validate 校验窗口配置
func (c WalkForwardConfig) Validate() error {
	if c.TrainBars < 1 {
		return &backtest.ValidationError{Field: "train_bars", Reason: "训练窗口必须至少 1 根 K 线"}
	}
	if c.TestBars < 1 {
		return &backtest.ValidationError{Field: "test_bars", Reason: "测试窗口必须至少 1 根 K 线"}
	}
	if c.StepBars < 1 {
		return &backtest.ValidationError{Field: "step_bars", Reason: "步进必须至少 1 根 K 线"}
	}
	return nil
}

// WindowResult 单个滚动窗口的结果。区间下标左闭右开。
// 样本外回测失败时记录 TestErr 且 TestScore 为 -Inf，不中断后续窗口。
type WindowResult struct {
	Window      int                `json:"window"`
	TrainStart  int                `json:"train_start"`
	TrainEnd    int                `json:"train_end"`
	TestStart   int                `json:"test_start"`
	TestEnd     int                `json:"test_end"`
	BestParams  map[string]float64 `json:"best_parameters"`
	TrainScore  float64            `json:"train_score"`
	TestScore   float64            `json:"test_score"`
	TestMetrics backtest.Metrics   `json:"test_metrics"`
	TestErr     string             `json:"test_error,omitempty"`
}

// MarshalJSON 失败窗口的得分是 -Inf，序列化成 null
func (w WindowResult) MarshalJSON() ([]byte, error) {
	type alias WindowResult
	return json.Marshal(struct {
		alias
		TrainScore interface{} `json:"train_score"`
		TestScore  interface{} `json:"test_score"`
	}{
		alias:      alias(w),
		TrainScore: backtest.FiniteOrNil(w.TrainScore),
		TestScore:  backtest.FiniteOrNil(w.TestScore),
	})
}

// WalkForward 把 K 线序列切成滚动的 (训练, 测试) 窗口：
// 每个窗口在训练段上寻优，把最优参数放到紧随其后的测试段上
// 做样本外回测，然后按步进前移。设了 Deadline 时逐窗口生效。
func WalkForward(candles []indicators.Candle, req Request, cfg WalkForwardConfig) ([]WindowResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if req.Cost == (backtest.CostConfig{}) {
		req.Cost = backtest.DefaultCostConfig()
	}

	need := cfg.TrainBars + cfg.TestBars
	if len(candles) < need {
		return nil, &backtest.InsufficientDataError{Needed: need, Have: len(candles)}
	}

	windows := make([]WindowResult, 0, (len(candles)-need)/cfg.StepBars+1)
	for w, offset := 0, 0; offset+need <= len(candles); w, offset = w+1, offset+cfg.StepBars {
		wr := WindowResult{
			Window:     w,
			TrainStart: offset,
			TrainEnd:   offset + cfg.TrainBars,
			TestStart:  offset + cfg.TrainBars,
			TestEnd:    offset + need,
			TrainScore: math.Inf(-1),
			TestScore:  math.Inf(-1),
		}
		logger.Info("📈 滚动寻优窗口 %d: 训练[%d,%d) 测试[%d,%d)", w, wr.TrainStart, wr.TrainEnd, wr.TestStart, wr.TestEnd)

		trainResult, err := Optimize(candles[wr.TrainStart:wr.TrainEnd], req)
		if err != nil {
			return nil, err
		}
		wr.BestParams = trainResult.BestParams
		wr.TrainScore = trainResult.BestScore

		if wr.BestParams == nil {
			wr.TestErr = "训练窗口没有产生有效参数"
			windows = append(windows, wr)
			continue
		}

		variant, err := strategy.FromParams(req.Strategy, wr.BestParams)
		if err != nil {
			wr.TestErr = err.Error()
			windows = append(windows, wr)
			continue
		}
		testResult, err := strategy.RunStrategyBacktest(candles[wr.TestStart:wr.TestEnd], variant, req.Cost)
		if err != nil {
			wr.TestErr = err.Error()
			windows = append(windows, wr)
			continue
		}
		wr.TestMetrics = testResult.Metrics
		wr.TestScore = scoreFor(req.Objective, testResult.Metrics)
		windows = append(windows, wr)
	}

	logger.Info("✅ 滚动寻优完成: 共 %d 个窗口", len(windows))
	return windows, nil
}
